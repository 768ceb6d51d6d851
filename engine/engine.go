// Package engine runs the dashboard core. A single goroutine owns the
// graph store, the layout simulation, the viewport and the overlay, and
// serializes every mutation through one select loop, so no reader ever
// observes a half-applied update. Callers interact by posting commands
// onto the loop and by reading the atomically published frame.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/events"
	"dealgraph/domain/simulation"
	"dealgraph/engine/layout"
	"dealgraph/engine/overlay"
	"dealgraph/engine/reconcile"
	"dealgraph/engine/render"
	"dealgraph/engine/store"
	"dealgraph/engine/viewport"
	"dealgraph/pkg/metrics"
)

const defaultFrameInterval = time.Second / 30

// Options configures a new engine
type Options struct {
	FrameInterval time.Duration
	Width, Height float64
	MinZoom       float64
	MaxZoom       float64
	Tuning        layout.Tuning

	ShowPredictions bool
	ShowLabels      bool
	ShowLegend      bool

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Frame is one published view of the world. Immutable once published;
// readers on any goroutine get it through Engine.Frame.
type Frame struct {
	Scene       *render.Scene
	Snapshot    *aggregates.GraphSnapshot
	Feed        reconcile.Status
	Alpha       float64
	Settled     bool
	Overlay     overlay.State
	Result      *simulation.Result
	Selection   viewport.Selection
	GeneratedAt time.Time
}

// Command runs on the engine loop with exclusive access to all state
type command func(*Engine)

// Engine is the loop owner. All fields below are loop-private; the
// published frame and the command channel are the only cross-goroutine
// surfaces.
type Engine struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	store      *store.Store
	layout     *layout.Engine
	reconciler *reconcile.Reconciler
	overlay    *overlay.Manager
	vp         *viewport.Viewport
	pointer    *viewport.Pointer

	showPredictions bool
	showLabels      bool
	showLegend      bool
	selection       viewport.Selection
	highlight       *valueobjects.CompanyID
	dragging        bool

	requester overlay.Requester

	commands chan command
	frame    atomic.Pointer[Frame]
	done     chan struct{}
}

// New assembles an engine. Run must be called before the engine does
// anything.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 800
	}

	st := store.New(opts.Logger.Named("store"))
	e := &Engine{
		opts:            opts,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		store:           st,
		layout:          layout.New(opts.Tuning, opts.Logger.Named("layout")),
		reconciler:      reconcile.New(st, opts.Logger.Named("reconcile"), opts.Metrics),
		overlay:         overlay.NewManager(opts.Logger.Named("overlay"), opts.Metrics),
		vp:              viewport.New(opts.Width, opts.Height, opts.MinZoom, opts.MaxZoom),
		showPredictions: opts.ShowPredictions,
		showLabels:      opts.ShowLabels,
		showLegend:      opts.ShowLegend,
		commands:        make(chan command, 128),
		done:            make(chan struct{}),
	}
	e.pointer = viewport.NewPointer(e.vp, viewport.Events{
		OnSelect: func(sel viewport.Selection) { e.selection = sel },
		OnHighlight: func(id *valueobjects.CompanyID) {
			e.highlight = id
		},
		OnDrag: func(started bool) {
			e.dragging = started
			if started {
				e.layout.Reheat(layout.AlphaDrag)
			} else {
				e.layout.Reheat(layout.AlphaPartial)
			}
		},
	})
	e.publish()
	return e
}

// SetFeedRequester wires the transport used for snapshot recovery and
// for simulation round-trips. Called once during assembly, before Run.
func (e *Engine) SetFeedRequester(snap reconcile.SnapshotRequester, sim overlay.Requester) {
	e.reconciler.SetRequester(snap)
	e.requester = sim
}

// Run drives the loop until ctx is canceled. It never returns early on
// its own.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.opts.FrameInterval)
	defer ticker.Stop()

	e.logger.Info("engine loop started",
		zap.Duration("frame_interval", e.opts.FrameInterval),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine loop stopped")
			return
		case <-ticker.C:
			e.tick()
		case cmd := <-e.commands:
			cmd(e)
		}
	}
}

// Done is closed when Run has returned
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Frame returns the most recently published frame. Safe from any
// goroutine; never nil after New.
func (e *Engine) Frame() *Frame {
	return e.frame.Load()
}

// post queues a command for the loop. Blocking here applies natural
// backpressure to producers when the loop is saturated.
func (e *Engine) post(cmd command) {
	select {
	case e.commands <- cmd:
	case <-e.done:
	}
}

// ---- feed side (called by the transport's read goroutine) ----

// HandleFeedMessage routes a live event onto the loop
func (e *Engine) HandleFeedMessage(msg events.FeedMessage) {
	e.post(func(e *Engine) {
		res, err := e.reconciler.Apply(msg)
		if err != nil {
			e.logger.Warn("feed event rejected",
				zap.Uint64("seq", msg.Seq),
				zap.String("type", string(msg.Type)),
				zap.Error(err),
			)
			return
		}
		if res.Structural {
			if msg.Type == events.EventGraphReplace {
				e.layout.Reheat(layout.AlphaFull)
			} else {
				e.layout.Reheat(layout.AlphaPartial)
			}
		}
	})
}

// HandleFeedConnect marks the feed connected and triggers resync
func (e *Engine) HandleFeedConnect() {
	e.post(func(e *Engine) { e.reconciler.HandleConnect() })
}

// HandleFeedDisconnect keeps the last-known-good model on screen
func (e *Engine) HandleFeedDisconnect(err error) {
	e.post(func(e *Engine) { e.reconciler.HandleDisconnect(err) })
}

// ---- interaction side ----

// PointerDown begins a drag or pan gesture at screen coordinates
func (e *Engine) PointerDown(sx, sy float64) {
	e.post(func(e *Engine) { e.pointer.Down(e.view(), sx, sy) })
}

// PointerMove advances the active gesture or updates hover state
func (e *Engine) PointerMove(sx, sy float64) {
	e.post(func(e *Engine) { e.pointer.Move(e.view(), sx, sy) })
}

// PointerUp ends the gesture, dispatching a click if within slop
func (e *Engine) PointerUp(sx, sy float64) {
	e.post(func(e *Engine) { e.pointer.Up(e.view(), sx, sy) })
}

// PointerCancel aborts the gesture, releasing any dragged node
func (e *Engine) PointerCancel() {
	e.post(func(e *Engine) { e.pointer.Cancel() })
}

// ZoomAt zooms by factor anchored at the given screen point
func (e *Engine) ZoomAt(factor, sx, sy float64) {
	e.post(func(e *Engine) { e.vp.ZoomAt(factor, sx, sy) })
}

// Pan shifts the view by a screen-space delta
func (e *Engine) Pan(dx, dy float64) {
	e.post(func(e *Engine) { e.vp.Pan(dx, dy) })
}

// Resize adjusts the viewport, preserving the world center
func (e *Engine) Resize(width, height float64) {
	e.post(func(e *Engine) { e.vp.Resize(width, height) })
}

// ResetView restores the initial pan and zoom
func (e *Engine) ResetView() {
	e.post(func(e *Engine) { e.vp.Reset() })
}

// SetShowPredictions toggles predicted edges in the scene
func (e *Engine) SetShowPredictions(show bool) {
	e.post(func(e *Engine) { e.showPredictions = show })
}

// SetShowLabels toggles node labels
func (e *Engine) SetShowLabels(show bool) {
	e.post(func(e *Engine) { e.showLabels = show })
}

// SetLive pauses or resumes live updates. Resuming requests a fresh
// snapshot because paused events are dropped, not buffered.
func (e *Engine) SetLive(live bool) {
	e.post(func(e *Engine) { e.reconciler.SetLive(live) })
}

// SetTuning swaps layout parameters and partially reheats, used by the
// config watcher for hot reload.
func (e *Engine) SetTuning(t layout.Tuning) {
	e.post(func(e *Engine) {
		e.layout.SetTuning(t)
		e.logger.Info("layout tuning updated")
	})
}

// ---- simulation side ----

// StartSimulation launches a what-if scenario. A newer call supersedes
// a pending one.
func (e *Engine) StartSimulation(ctx context.Context, req simulation.ScenarioRequest) {
	e.post(func(e *Engine) {
		if e.requester == nil {
			e.logger.Warn("simulation requested with no prediction transport")
			return
		}
		restored := e.overlay.Start(ctx, e.store.Snapshot(), req, e.requester, func(resp overlay.Response) {
			e.post(func(e *Engine) { e.completeSimulation(resp) })
		})
		if len(restored) > 0 {
			e.layout.Reheat(layout.AlphaPartial)
		}
	})
}

// ResetSimulation tears down the overlay and restores live positions
func (e *Engine) ResetSimulation() {
	e.post(func(e *Engine) {
		if restored := e.overlay.Reset(); len(restored) > 0 {
			e.layout.Reheat(layout.AlphaPartial)
		}
	})
}

func (e *Engine) completeSimulation(resp overlay.Response) {
	affected, err := e.overlay.Complete(e.store.Snapshot(), resp)
	if err != nil {
		e.logger.Warn("simulation not applied", zap.Error(err))
		return
	}
	if len(affected) > 0 {
		e.layout.Reheat(layout.AlphaPartial)
	}
}

// ---- loop internals ----

// view is the snapshot everything downstream of the overlay sees
func (e *Engine) view() *aggregates.GraphSnapshot {
	return e.overlay.View(e.store.Snapshot())
}

func (e *Engine) tick() {
	started := time.Now()

	snap := e.view()
	if e.dragging {
		// A drag holds the neighborhood gently energized
		if e.layout.Alpha() < layout.AlphaDrag {
			e.layout.Reheat(layout.AlphaDrag)
		}
	}
	e.layout.Step(snap)

	if e.metrics != nil {
		e.metrics.LayoutSteps.Inc()
		e.metrics.LayoutAlpha.Set(e.layout.Alpha())
		e.metrics.FrameDuration.Observe(time.Since(started).Seconds())
	}
	e.publish()
}

// publish builds the frame and swaps the pointer. The scene build walks
// shared entity pointers; since positions only change on this loop the
// frame is internally consistent.
func (e *Engine) publish() {
	snap := e.view()
	scene := render.BuildScene(snap, e.vp, render.Options{
		ShowPredictions: e.showPredictions,
		ShowLabels:      e.showLabels,
		ShowLegend:      e.showLegend,
		Selection:       e.selection,
		Highlight:       e.highlight,
		AffectedNodes:   e.overlay.AffectedSet(),
		IsOverlayNode:   e.overlay.IsOverlayNode,
	})
	e.frame.Store(&Frame{
		Scene:       scene,
		Snapshot:    snap,
		Feed:        e.reconciler.Status(),
		Alpha:       e.layout.Alpha(),
		Settled:     e.layout.Settled(),
		Overlay:     e.overlay.State(),
		Result:      e.overlay.Result(),
		Selection:   e.selection,
		GeneratedAt: time.Now(),
	})
}
