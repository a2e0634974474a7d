package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	natspkg "github.com/meowzlabs/presale/service/nats"
)

func tailEventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "tail",
		Usage:     "Stream purchase lifecycle events",
		ArgsUsage: "[buyer_address]",
		Description: `Connects to NATS JetStream and streams purchase events. With a buyer
address, only that buyer's events are shown; otherwise all purchases.

Events are published to the subject: purchases.{buyer_address}

Example:
  presale events tail DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "presale-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if c.NArg() > 0 {
				subject = fmt.Sprintf("purchases.%s", c.Args().Get(0))
			}
			return streamEvents(c, subject, nil)
		},
	}
}

func awaitEventCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Block until a purchase event matching criteria arrives",
		ArgsUsage: "[buyer_address]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Filter by event type (submitted, finalized, failed, timed_out)",
			},
			&cli.StringFlag{
				Name:  "signature",
				Usage: "Filter by exact transaction signature",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   5 * time.Minute,
				Usage:   "How long to wait for a matching event",
			},
		},
		Action: func(c *cli.Context) error {
			eventType := c.String("type")
			signature := c.String("signature")
			jqFilters := c.StringSlice("must-jq")

			if eventType == "" && signature == "" && len(jqFilters) == 0 {
				return fmt.Errorf("must specify at least one filter: --type, --signature, or --must-jq")
			}

			// Compile jq filters
			compiledJQFilters := make([]*gojq.Code, len(jqFilters))
			for i, filter := range jqFilters {
				query, err := gojq.Parse(filter)
				if err != nil {
					return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
				}
				compiledJQFilters[i], err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
				}
			}

			matcher := func(event *natspkg.PurchaseEvent, raw []byte) bool {
				if eventType != "" && event.Type != eventType {
					return false
				}
				if signature != "" && event.Signature != signature {
					return false
				}

				if len(compiledJQFilters) > 0 {
					var eventJSON interface{}
					if err := json.Unmarshal(raw, &eventJSON); err != nil {
						return false
					}
					// All jq filters must evaluate to true
					for _, code := range compiledJQFilters {
						iter := code.Run(eventJSON)
						v, ok := iter.Next()
						if !ok {
							return false
						}
						if _, isErr := v.(error); isErr {
							return false
						}
						if !isTruthy(v) {
							return false
						}
					}
				}
				return true
			}

			subject := natspkg.StreamSubjects
			if c.NArg() > 0 {
				subject = fmt.Sprintf("purchases.%s", c.Args().Get(0))
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			return awaitEvent(ctx, c, subject, matcher)
		},
	}
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

// consumeEvents subscribes to subject and delivers messages on a channel.
func consumeEvents(ctx context.Context, c *cli.Context, subject string) (chan jetstream.Msg, func(), error) {
	nc, err := nats.Connect(c.String("nats-url"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if c.Bool("durable") {
		consumerConfig.Durable = c.String("consumer-name")
		consumerConfig.Name = c.String("consumer-name")
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	msgChan := make(chan jetstream.Msg, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	cleanup := func() {
		cc.Stop()
		nc.Close()
	}
	return msgChan, cleanup, nil
}

func streamEvents(c *cli.Context, subject string, matcher func(*natspkg.PurchaseEvent, []byte) bool) error {
	jsonOutput := c.Bool("json")

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "Subscribing to: %s\n", subject)
		fmt.Fprintf(os.Stderr, "NATS: %s\n\nWaiting for events... (Ctrl-C to exit)\n\n", c.String("nats-url"))
	}

	ctx := context.Background()
	msgChan, cleanup, err := consumeEvents(ctx, c, subject)
	if err != nil {
		return err
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	count := 0
	for {
		select {
		case msg := <-msgChan:
			event, ok := decodeEvent(msg, jsonOutput)
			if !ok {
				continue
			}
			if matcher != nil && !matcher(event, msg.Data()) {
				continue
			}
			count++
			printEvent(event, msg.Data(), count, jsonOutput)

		case <-sigChan:
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nReceived %d events\n", count)
			}
			return nil
		}
	}
}

func awaitEvent(ctx context.Context, c *cli.Context, subject string, matcher func(*natspkg.PurchaseEvent, []byte) bool) error {
	jsonOutput := c.Bool("json")

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "Waiting for matching event on %s...\n", subject)
	}

	msgChan, cleanup, err := consumeEvents(ctx, c, subject)
	if err != nil {
		return err
	}
	defer cleanup()

	for {
		select {
		case msg := <-msgChan:
			event, ok := decodeEvent(msg, jsonOutput)
			if !ok {
				continue
			}
			if !matcher(event, msg.Data()) {
				continue
			}
			printEvent(event, msg.Data(), 1, jsonOutput)
			return nil

		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for matching event")
		}
	}
}

func decodeEvent(msg jetstream.Msg, jsonOutput bool) (*natspkg.PurchaseEvent, bool) {
	var event natspkg.PurchaseEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		if !jsonOutput {
			fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
		}
		msg.Ack()
		return nil, false
	}
	msg.Ack()
	return &event, true
}

func printEvent(event *natspkg.PurchaseEvent, raw []byte, count int, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(string(raw))
		return
	}

	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Event #%d: %s\n", count, event.Type)
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Signature:    %s\n", event.Signature)
	if event.BuyerAddress != "" {
		fmt.Printf("Buyer:        %s\n", event.BuyerAddress)
	}
	if event.TokenAmount != "" {
		fmt.Printf("Tokens:       %s\n", event.TokenAmount)
	}
	if event.PaymentSOL != "" {
		fmt.Printf("Payment:      %s SOL\n", event.PaymentSOL)
	}
	if event.Reason != "" {
		fmt.Printf("Reason:       %s\n", event.Reason)
	}
	fmt.Printf("Published:    %s\n", event.PublishedAt.Format(time.RFC3339))
	fmt.Printf("\n")
}
