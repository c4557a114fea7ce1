package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/rfidrop/internal/authsvc"
	"github.com/tanq16/rfidrop/internal/output"
)

func newServeCmd() *cobra.Command {
	var listenAddr, bucket, region, profile, prefix string
	var urlExpiry time.Duration

	cmd := &cobra.Command{
		Use:   "serve [--bucket BUCKET] [OPTIONS]",
		Short: "Run the reference upload authorization service backed by S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Serve.ListenAddr = listenAddr
			}
			if flags.Changed("bucket") {
				cfg.Serve.Bucket = bucket
			}
			if flags.Changed("region") {
				cfg.Serve.Region = region
			}
			if flags.Changed("profile") {
				cfg.Serve.Profile = profile
			}
			if flags.Changed("prefix") {
				cfg.Serve.Prefix = prefix
			}
			if flags.Changed("url-expiry") {
				cfg.Serve.URLExpiry = urlExpiry
			}
			if cfg.Serve.Bucket == "" {
				return errors.New("a bucket is required (--bucket or RFIDROP_BUCKET)")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			client, presigner, err := authsvc.NewS3Backend(ctx, cfg.Serve.Profile, cfg.Serve.Region, cfg.Serve.Bucket)
			if err != nil {
				return err
			}
			server := authsvc.NewServer(client, presigner, authsvc.Config{
				Bucket:    cfg.Serve.Bucket,
				Prefix:    cfg.Serve.Prefix,
				URLExpiry: cfg.Serve.URLExpiry,
			})
			httpServer := &http.Server{
				Addr:              cfg.Serve.ListenAddr,
				Handler:           server.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()
			output.PrintInfo("Serving upload authorization on " + cfg.Serve.ListenAddr + " for bucket " + cfg.Serve.Bucket)
			log.Info().Str("op", "cmd/serve").Msgf("listening on %s", cfg.Serve.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket receiving uploads")
	cmd.Flags().StringVar(&region, "region", "", "Bucket region (looked up when empty)")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS shared config profile")
	cmd.Flags().StringVar(&prefix, "prefix", "rfi-uploads", "Key prefix for uploaded objects")
	cmd.Flags().DurationVar(&urlExpiry, "url-expiry", time.Hour, "Lifetime of presigned part URLs")
	return cmd
}
