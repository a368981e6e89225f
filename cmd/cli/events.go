package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"survey-assistant-be/internal/config"
	"survey-assistant-be/pkg/events"
	pktNats "survey-assistant-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var (
		natsURL   string
		eventType string
		durable   string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail survey events forwarded to NATS JetStream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if natsURL == "" {
				natsURL = config.Load().App.NatsURL
			}
			if natsURL == "" {
				return fmt.Errorf("no NATS URL: pass --nats-url or set NATS_URL")
			}

			sub, err := pktNats.NewSubscriber(natsURL)
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			color.Cyan("Listening for %s events on %s (Ctrl+C to stop)", orAll(eventType), natsURL)
			return sub.Subscribe(ctx, eventType, durable, func(_ context.Context, evt events.Event) error {
				payload, err := json.Marshal(evt.Payload())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s %s\n",
					evt.Timestamp().Format("15:04:05"),
					color.GreenString(evt.EventType()),
					payload)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (defaults to NATS_URL)")
	cmd.Flags().StringVar(&eventType, "type", "", "only show this event type, e.g. SURVEY_SAVED")
	cmd.Flags().StringVar(&durable, "durable", "", "durable consumer name; empty for an ephemeral consumer")
	return cmd
}

func orAll(eventType string) string {
	if eventType == "" {
		return "all"
	}
	return eventType
}
