// The viewer command runs the dashboard engine headlessly against a
// feed service: it connects to the websocket feed, keeps the layout
// settling and periodically reports or exports the rendered frame.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealgraph/engine"
	"dealgraph/engine/render"
	"dealgraph/engine/transport"
	"dealgraph/infrastructure/config"
	"dealgraph/infrastructure/prediction"
	"dealgraph/pkg/metrics"

	"go.uber.org/zap"
)

func main() {
	var (
		feedURL    = flag.String("feed", "ws://localhost:8080/feed", "websocket feed URL")
		authToken  = flag.String("token", "", "bearer token for the feed")
		exportPath = flag.String("export", "", "write the frame to this file on exit (.svg or .png)")
		predictURL = flag.String("prediction", os.Getenv("PREDICTION_URL"), "inference service base URL for what-if scenarios")
		statsEvery = flag.Duration("stats", 10*time.Second, "frame stats logging interval")
		tuningPath = flag.String("tuning", os.Getenv("LAYOUT_TUNING_PATH"), "layout tuning YAML, hot-reloaded")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	eng := engine.New(engine.Options{
		ShowPredictions: true,
		ShowLabels:      true,
		ShowLegend:      true,
		Logger:          logger,
		Metrics:         m,
	})

	feed := transport.New(transport.Options{
		URL:       *feedURL,
		AuthToken: *authToken,
		Logger:    logger,
		Metrics:   m,
	}, eng)
	eng.SetFeedRequester(feed, prediction.NewClient(prediction.DefaultConfig(*predictURL), logger))

	if *tuningPath != "" {
		watcher, werr := config.NewTuningWatcher(*tuningPath, logger)
		if werr != nil {
			logger.Fatal("Failed to watch tuning file", zap.Error(werr))
		}
		eng.SetTuning(watcher.Current())
		watcher.OnChange(eng.SetTuning)
		watcher.Start()
		defer watcher.Stop()
	}

	go eng.Run(ctx)
	go feed.Run(ctx)

	ticker := time.NewTicker(*statsEvery)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			frame := eng.Frame()
			if frame == nil {
				continue
			}
			logger.Info("frame",
				zap.String("scene", frame.Scene.Stats()),
				zap.Float64("alpha", frame.Alpha),
				zap.Bool("settled", frame.Settled),
				zap.Bool("live", frame.Feed.Live),
				zap.Uint64("seq", frame.Feed.LastSeq),
			)

		case <-sigChan:
			if *exportPath != "" {
				if err := exportFrame(eng, *exportPath); err != nil {
					logger.Error("frame export failed", zap.Error(err))
				} else {
					logger.Info("frame exported", zap.String("path", *exportPath))
				}
			}
			cancel()
			<-eng.Done()
			return
		}
	}
}

func exportFrame(eng *engine.Engine, path string) error {
	frame := eng.Frame()
	if frame == nil || frame.Scene == nil {
		return nil
	}

	format := render.FormatSVG
	if len(path) > 4 && path[len(path)-4:] == ".png" {
		format = render.FormatPNG
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return render.Export(f, frame.Scene, format)
}
