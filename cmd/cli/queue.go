package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/marcelsud/jobgate/config"
	"github.com/marcelsud/jobgate/job"
	jobredis "github.com/marcelsud/jobgate/job/redis"
	"github.com/marcelsud/jobgate/webhook/payload"
	"github.com/spf13/cobra"
)

func openQueue() (*jobredis.Queue, *config.Config, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, nil, err
	}
	q, err := jobredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return q, cfg, nil
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and feed job queues",
	}
	cmd.AddCommand(queueDepthCmd(), queuePeekCmd(), queuePushCmd())
	return cmd
}

func queueDepthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "depth [queue_class]",
		Short: "Print the number of waiting jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			q, cfg, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close(ctx)

			key := job.QueueKey(cfg.QueueKeyPrefix, args[0])
			depth, err := q.Depth(ctx, key)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%d\n", key, depth)
			return nil
		},
	}
}

func queuePeekCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "peek [queue_class]",
		Short: "Print the oldest waiting jobs without consuming them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			q, cfg, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close(ctx)

			depth, jobs, err := job.NewService(q).Inspect(ctx, job.QueueKey(cfg.QueueKeyPrefix, args[0]), count)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"depth": depth, "jobs": jobs})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of jobs to show")
	return cmd
}

func queuePushCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "push [tenant_id] [payload_file]",
		Short: "Enqueue a job envelope directly, bypassing the signed ingress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			body, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}
			env, err := payload.Parse(body)
			if err != nil {
				return err
			}

			q, cfg, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close(ctx)

			j, err := job.NewService(q).Submit(ctx, args[0], job.QueueKey(cfg.QueueKeyPrefix, class), env.Type, env.Data)
			if err != nil {
				return err
			}
			fmt.Println(j.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&class, "class", "c", "default", "Queue class")
	return cmd
}
