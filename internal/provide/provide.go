// Package provide implements the sending side: import a path into a local
// scratch store, advertise a ticket, and serve blob requests until the
// process is interrupted.
package provide

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/flitshare/flit/internal/assemble"
	"github.com/flitshare/flit/internal/store"
	"github.com/flitshare/flit/internal/transport"
	"github.com/flitshare/flit/pkg/blob"
	"github.com/flitshare/flit/pkg/ticket"
)

// Options configures a provide run.
type Options struct {
	// Path is the file or directory to share.
	Path string
	// Addr is the UDP listen address, typically "0.0.0.0:0".
	Addr string
	// StoreDir is the scratch store location, created for this run and
	// removed afterwards.
	StoreDir string
	// Identity is the session key material.
	Identity *transport.Identity

	Logger *slog.Logger
	Stdout io.Writer
}

// Run imports opts.Path, prints the ticket, and serves sessions until ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	if _, err := os.Stat(opts.StoreDir); err == nil {
		return fmt.Errorf("can not provide twice from the same directory: %s exists", opts.StoreDir)
	}
	st, err := store.Open(opts.StoreDir)
	if err != nil {
		return err
	}
	defer func() {
		st.Close()
		os.RemoveAll(opts.StoreDir)
	}()

	res, err := assemble.Build(ctx, st, opts.Path)
	if err != nil {
		return err
	}
	defer res.Tag.Drop()
	fmt.Fprintf(opts.Stdout, "imported %s, %d bytes\n", opts.Path, res.Size)

	ln, err := transport.Listen(opts.Addr, opts.Identity, opts.Logger)
	if err != nil {
		return err
	}
	defer ln.Close()

	tk, err := ticket.New(transport.DialableAddrs(ln.Addr()), res.Tag.Hash(), blob.FormatCollection)
	if err != nil {
		return err
	}
	fmt.Fprintln(opts.Stdout, "use")
	fmt.Fprintf(opts.Stdout, "flit get %s\n", tk)
	fmt.Fprintln(opts.Stdout, "to get this data")

	for {
		sess, err := ln.Accept(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			opts.Logger.Info("no more incoming sessions, exiting")
			return nil
		}
		go serveSession(ctx, sess, st, opts.Logger)
	}
}

func serveSession(ctx context.Context, sess *transport.Session, st *store.Store, logger *slog.Logger) {
	defer sess.Close()
	for {
		stream, err := sess.AcceptStream(ctx)
		if err != nil {
			logger.Debug("session drained", "remote_addr", sess.RemoteAddr(), "error", err)
			return
		}
		go func() {
			defer stream.Close()
			if err := ServeStream(st, stream, logger); err != nil {
				logger.Warn("serve stream", "remote_addr", sess.RemoteAddr(), "error", err)
			}
		}()
	}
}
