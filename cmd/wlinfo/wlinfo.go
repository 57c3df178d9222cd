// Command wlinfo dumps what a Wayland compositor offers a video
// sink: the registry globals, the shm formats usable for frames, the
// outputs, and which optional protocols the sink would pick up.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"

	"deedles.dev/wlsink"
	"golang.org/x/exp/maps"
)

type global struct {
	iface   string
	version uint32
}

// registryDump records every global a registry advertises, bound or
// not.
type registryDump struct {
	globals map[uint32]global
}

func (r *registryDump) Global(name uint32, iface string, version uint32) {
	r.globals[name] = global{iface: iface, version: version}
}

func (r *registryDump) GlobalRemove(name uint32) {
	delete(r.globals, name)
}

func main() {
	name := flag.String("display", "", "compositor socket to connect to instead of $WAYLAND_DISPLAY")
	verbose := flag.Bool("v", false, "log protocol details")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	d, err := wlsink.Connect(*name, logger)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer d.Close()

	// The display only binds what it can use; a registry of our own
	// sees everything.
	dump := registryDump{globals: make(map[uint32]global)}
	err = d.Run(func() {
		reg := d.Client().Display().GetRegistry()
		reg.Listener = &dump
	})
	if err == nil {
		err = d.RoundTrip()
	}
	if err != nil {
		log.Fatalf("enumerate globals: %v", err)
	}

	var globals map[uint32]global
	if err := d.Run(func() { globals = maps.Clone(dump.globals) }); err != nil {
		log.Fatalf("enumerate globals: %v", err)
	}

	names := maps.Keys(globals)
	slices.Sort(names)
	for _, n := range names {
		g := globals[n]
		fmt.Printf("interface: %q, version: %v, name: %v\n", g.iface, g.version, n)
	}

	fmt.Printf("\nshm formats:\n")
	for _, f := range d.Formats() {
		fmt.Printf("\t%v (0x%08x)\n", f, uint32(f))
	}

	fmt.Printf("\noutputs:\n")
	outputs := d.Outputs()
	if len(outputs) == 0 {
		fmt.Printf("\tnone known\n")
	}
	for _, o := range outputs {
		fmt.Printf("\t%v %v: %vx%v@%vmHz, scale %v, transform %v\n",
			o.Make, o.Model, o.Width, o.Height, o.Refresh, o.Scale, o.Transform)
	}

	fmt.Printf("\nsink capabilities:\n")
	for _, c := range []struct {
		name string
		have bool
	}{
		{"wp_viewporter", d.HasViewporter()},
		{"xdg_wm_base", d.HasXdgShell()},
		{"wl_shell", d.HasLegacyShell()},
		{"zwp_fullscreen_shell_v1", d.HasFullscreenShell()},
		{"zwp_linux_explicit_synchronization_v1", d.HasExplicitSync()},
		{"zwp_alpha_compositing_v1", d.HasAlphaCompositing()},
	} {
		fmt.Printf("\t%-40v %v\n", c.name, c.have)
	}
}
