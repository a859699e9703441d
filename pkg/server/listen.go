package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// Listen dispatches addr to a unix-socket or plain TCP listener depending on
// its scheme, matching the teacher's pkg/server.Listen dispatcher (narrowed
// to the two transports this runtime actually needs; named-pipe and
// inherited-fd listening are Windows/systemd-socket-activation concerns the
// teacher's CLI-plugin packaging needs that this standalone binary does
// not).
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		return listenUnix(ctx, path)
	}
	return listenTCP(ctx, addr)
}

func listenUnix(ctx context.Context, path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	var lc net.ListenConfig
	return lc.Listen(ctx, "unix", path)
}

func listenTCP(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}
