// Command wlplay presents a moving test pattern, or a file of raw
// frames, through the Wayland video sink. It is the quickest way to
// see whether a compositor and the sink get along.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"image/draw"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"deedles.dev/wlsink"
	wl "deedles.dev/wlsink/client"
	"deedles.dev/ximage/xcursor"
	"golang.org/x/sync/errgroup"
)

var transforms = map[int]wl.OutputTransform{
	0:   wl.OutputTransformNormal,
	90:  wl.OutputTransform90,
	180: wl.OutputTransform180,
	270: wl.OutputTransform270,
}

func main() {
	var (
		name       = flag.String("display", "", "compositor socket to connect to instead of $WAYLAND_DISPLAY")
		size       = flag.String("size", "640x360", "frame size as WxH")
		fps        = flag.Int("fps", 30, "frames per second")
		fullscreen = flag.Bool("fullscreen", false, "cover the output")
		alpha      = flag.Float64("alpha", 1, "window background opacity, where supported")
		rotate     = flag.Int("rotate", 0, "rotate the video by 0, 90, 180 or 270 degrees")
		raw        = flag.String("raw", "", "play raw xrgb8888 frames from this file instead of the pattern")
		verbose    = flag.Bool("v", false, "log protocol details")
	)
	flag.Parse()

	var width, height int32
	if _, err := fmt.Sscanf(*size, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
		log.Fatalf("bad size %q", *size)
	}
	transform, ok := transforms[*rotate]
	if !ok {
		log.Fatalf("bad rotation %v", *rotate)
	}
	if *fps <= 0 {
		log.Fatalf("bad frame rate %v", *fps)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s := wlsink.New(
		wlsink.WithDisplayName(*name),
		wlsink.WithLogger(logger),
		wlsink.WithFullscreen(*fullscreen),
		wlsink.WithAlpha(*alpha),
		wlsink.WithPreferredSize(width, height),
	)
	s.OnClosed(cancel)
	if err := s.Start(); err != nil {
		log.Fatalf("start sink: %v", err)
	}
	defer s.Stop()

	if transform != wl.OutputTransformNormal {
		s.SetRotation(transform)
	}
	if err := setCursor(s.Display()); err != nil {
		logger.Warn("no pointer cursor", "err", err)
	}

	info := wlsink.VideoInfo{Format: wl.ShmFormatXrgb8888, Width: width, Height: height}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if *raw != "" {
			return playFile(ctx, s, info, *raw, *fps)
		}
		return playPattern(ctx, s, info, *fps)
	})
	eg.Go(func() error { return stats(ctx, logger, s) })

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("play: %v", err)
	}
}

// setCursor gives the window an arrow from the system cursor theme.
func setCursor(d *wlsink.Display) error {
	theme, err := xcursor.LoadTheme("")
	if err != nil {
		return err
	}
	cursors, ok := theme.Cursors["left_ptr"]
	if !ok {
		return errors.New("cursor theme has no left_ptr")
	}
	img := cursors.Images[cursors.BestSize(24)][0]
	return d.SetCursor(img.Image, int32(img.Hot.X), int32(img.Hot.Y))
}

// playPattern renders color bars with a moving tick directly into
// pool frames, which the sink presents without copying.
func playPattern(ctx context.Context, s *wlsink.Sink, info wlsink.VideoInfo, fps int) error {
	pool, err := s.Display().NewPool(info, 3)
	if err != nil {
		return fmt.Errorf("create frame pool: %w", err)
	}
	defer pool.Destroy()

	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		frame, err := pool.Acquire()
		if err != nil {
			// Every slot is on its way to the screen; skip the tick.
			continue
		}
		drawPattern(frame.Image(), info, n)
		err = s.Render(frame)
		frame.Unref()
		if err != nil {
			return err
		}
	}
}

// playFile streams raw frames from path, looping when it runs out.
func playFile(ctx context.Context, s *wlsink.Sink, info wlsink.VideoInfo, path string, fps int) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, info.Size())

	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		_, err := io.ReadFull(file, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		if err := s.RenderBytes(buf, info); err != nil {
			return err
		}
	}
}

// bars are the classic 75% color bars.
var bars = []color.NRGBA{
	{R: 0xbf, G: 0xbf, B: 0xbf, A: 0xff},
	{R: 0xbf, G: 0xbf, B: 0x00, A: 0xff},
	{R: 0x00, G: 0xbf, B: 0xbf, A: 0xff},
	{R: 0x00, G: 0xbf, B: 0x00, A: 0xff},
	{R: 0xbf, G: 0x00, B: 0xbf, A: 0xff},
	{R: 0xbf, G: 0x00, B: 0x00, A: 0xff},
	{R: 0x00, G: 0x00, B: 0xbf, A: 0xff},
}

func drawPattern(img draw.Image, info wlsink.VideoInfo, n int) {
	w, h := int(info.Width), int(info.Height)
	tickX := n * 4 % w

	for y := range h {
		for x := range w {
			c := bars[x*len(bars)/w]
			if x == tickX {
				c = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			}
			img.Set(x, y, c)
		}
	}
}

// stats logs throughput every few seconds while the stream runs.
func stats(ctx context.Context, log *slog.Logger, s *wlsink.Sink) error {
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	var lastShown, lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		shown, dropped := s.FramesShown(), s.FramesDropped()
		log.Info("playing",
			"fps", float64(shown-lastShown)/5,
			"dropped", dropped-lastDropped,
		)
		lastShown, lastDropped = shown, dropped
	}
}
