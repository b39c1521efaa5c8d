package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/transport/websocket"
)

func watch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := websocket.Dial(ctx, cmd.String("url"), cmd.String("token"))
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()

	if interval := cmd.Duration("ping"); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					if err := w.Send(domain.NewMessage(domain.MessageTypePing, nil, now)); err != nil {
						return
					}
				}
			}
		}()
	}

	out := cmd.Root().Writer
	for {
		_, raw, err := w.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if raw != nil {
				fmt.Fprintf(os.Stderr, "skipping frame: %v\n", err)
				continue
			}
			return err
		}
		fmt.Fprintln(out, string(raw))
	}
}
