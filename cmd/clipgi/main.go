package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/fogleman/fauxgl"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"github.com/soypat/clipgi/clipmap"
	"github.com/soypat/clipgi/conetrace"
	"github.com/soypat/clipgi/debugview"
	"github.com/soypat/clipgi/glkernel"
	"github.com/soypat/clipgi/inject"
	"github.com/soypat/clipgi/pipeline"
	"github.com/soypat/clipgi/scene"
	"github.com/soypat/clipgi/voxel"
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

var version = "v0.1.0"

type config struct {
	Scene       string   `cli:""        env:"CLIPGI_SCENE"        help:"Scene to render: cornell or the path of a binary STL file."`
	Frames      int      `cli:""        env:"CLIPGI_FRAMES"       help:"Number of frames flown along the camera path."`
	Output      string   `cli:""        env:"CLIPGI_OUTPUT"       help:"Directory where images are written."`
	Width       int      `cli:""        env:"CLIPGI_WIDTH"        help:"Width of the shaded image."`
	Height      int      `cli:""        env:"CLIPGI_HEIGHT"       help:"Height of the shaded image."`
	Params      string   `cli:""        env:"CLIPGI_PARAMS"       help:"JSON file with cone tracing parameters."`
	Display     string   `cli:""        env:"CLIPGI_DISPLAY"      help:"Display mode (combined|direct|diffuse|specular|ao). Overrides the parameters file."`
	Hooks       []string `cli:""        env:"CLIPGI_HOOKS"        help:"Comma separated debug hooks run after the last frame."`
	GPU         bool     `cli:""        env:"CLIPGI_GPU"          help:"Run the volume passes as GL compute shaders."`
	MetricsAddr string   `cli:""        env:"CLIPGI_METRICS_ADDR" help:"Serve Prometheus metrics on this address until interrupted."`
	LogLevel    string   `cli:""        env:"CLIPGI_LOG_LEVEL"    help:"Log level (debug|info|warning|error)."`
	LogIndent   bool     `cli:""        env:"CLIPGI_LOG_INDENT"   help:"Indent logs."`
	Clipmap     clipmapConfig
	Version     bool `cli:"" env:"-" help:"Show version."`
	Help        bool `cli:"" env:"-" help:"Show help."`
}

type clipmapConfig struct {
	Resolution      int     `cli:",hidden" env:"CLIPGI_RESOLUTION"       help:"Voxels per side of each clip level."`
	BaseExtent      float32 `cli:",hidden" env:"CLIPGI_BASE_EXTENT"      help:"World size of the finest clip level."`
	Border          int     `cli:",hidden" env:"CLIPGI_BORDER"           help:"Border voxels on each side of a level."`
	ClipMinChange   string  `cli:",hidden" env:"CLIPGI_CLIP_MIN_CHANGE"  help:"Comma separated minimum region shift in voxels, one per level."`
	Filter          string  `cli:",hidden" env:"CLIPGI_FILTER"           help:"Downsample filter (anisotropic|average|max)."`
	DownsampleBlock int     `cli:",hidden" env:"CLIPGI_DOWNSAMPLE_BLOCK" help:"Edge size in coarse voxels of a downsample dispatch tile."`
	ShadowSize      int     `cli:",hidden" env:"CLIPGI_SHADOW_SIZE"      help:"Shadow map side in texels."`
}

func main() {
	cm := clipmap.DefaultConfig()
	conf := config{
		Scene:    "cornell",
		Frames:   64,
		Output:   "clipgi-out",
		Width:    320,
		Height:   240,
		LogLevel: logs.InfoLevel.String(),
		Clipmap: clipmapConfig{
			Resolution:      cm.Resolution,
			BaseExtent:      cm.BaseExtent,
			Border:          cm.Border,
			ClipMinChange:   formatClipMinChange(cm.ClipMinChange),
			Filter:          cm.DownsampleFilter.String(),
			DownsampleBlock: cm.DownsampleBlock,
			ShadowSize:      512,
		},
	}

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Flies a camera through a scene and renders it with clipmap voxel cone tracing.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}
	errors.Encoder = json.Marshal

	cfg, err := clipmapFromConfig(conf)
	if err != nil {
		logs.Fatal(err)
	}
	params, err := loadParams(conf.Params, conf.Display)
	if err != nil {
		logs.Fatal(err)
	}

	if conf.MetricsAddr != "" {
		var admin http.ServeMux
		admin.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: conf.MetricsAddr, Handler: &admin}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logs.Warn(errors.New("metrics server failed").Wrap(err))
			}
		}()
		defer server.Close()
	}

	var kernels voxel.Kernels = voxel.CPUKernels{}
	if conf.GPU {
		runtime.LockOSThread() // For GL.
		_, terminate, err := glgl.InitWithCurrentWindow33(glgl.WindowConfig{
			Title:   "clipgi",
			Version: [2]int{4, 6},
			Width:   1,
			Height:  1,
		})
		if err != nil {
			logs.Fatal(errors.New("initializing GL failed").Wrap(err))
		}
		defer terminate()
		gk, err := glkernel.New()
		if err != nil {
			logs.Fatal(err)
		}
		kernels = gk
	}

	mesh, err := loadScene(conf.Scene)
	if err != nil {
		logs.Fatal(err)
	}
	bounds := mesh.Bounds()
	light := inject.NewDirectionalLight(ms3.Vec{X: 0.3, Y: -1, Z: -0.4}, ms3.Vec{X: 1, Y: 0.95, Z: 0.9}, 3, bounds)
	scene.RenderShadowMap(mesh, light, conf.Clipmap.ShadowSize)

	driver, err := pipeline.NewBuilder(cfg).
		Kernels(kernels).
		Cache().
		Voxelizer(mesh).
		Injector(light).
		ConeTracer(params).
		Build()
	if err != nil {
		logs.Fatal(err)
	}

	logs.WithTag("version", version).
		WithTag("scene", conf.Scene).
		WithTag("triangles", mesh.Triangles()).
		WithTag("stages", driver.Stages()).
		WithTag("gpu", conf.GPU).
		Info("starting clipgi")

	path := flyThrough(bounds)
	out := make([]ms3.Vec, conf.Width*conf.Height)
	var last scene.Viewpoint
	for i := 0; i < conf.Frames && ctx.Err() == nil; i++ {
		last = path.At(i, conf.Frames)
		if i == conf.Frames-1 {
			g := scene.RenderGBuffer(mesh, last, light, conf.Width, conf.Height)
			if err := driver.SetView(&pipeline.View{GBuffer: g, Output: out}); err != nil {
				logs.Fatal(err)
			}
		}
		report, err := driver.Frame(ctx, last)
		if err != nil {
			logs.Fatal(errors.New("frame failed").WithTag("frame", i).Wrap(err))
		}
		logs.WithTag("frame", report.Frame).
			WithTag("due", report.Due).
			WithTag("commands", len(report.Runs)).
			WithTag("elapsed", report.Elapsed).
			Info("frame rendered")
	}

	if err := os.MkdirAll(conf.Output, 0o755); err != nil {
		logs.Fatal(errors.New("creating output directory failed").Wrap(err))
	}
	imgPath := filepath.Join(conf.Output, params.DisplayMode.String()+".png")
	if err := fauxgl.SavePNG(imgPath, shadedImage(out, conf.Width, conf.Height)); err != nil {
		logs.Fatal(errors.New("saving image failed").Wrap(err))
	}
	if err := runHooks(conf, driver, last); err != nil {
		logs.Fatal(err)
	}
	logs.WithTag("output", conf.Output).Info("done")

	if conf.MetricsAddr != "" {
		<-ctx.Done()
	}
}

func clipmapFromConfig(conf config) (clipmap.Config, error) {
	cfg := clipmap.DefaultConfig()
	cfg.Resolution = conf.Clipmap.Resolution
	cfg.BaseExtent = conf.Clipmap.BaseExtent
	cfg.Border = conf.Clipmap.Border
	cfg.DownsampleBlock = conf.Clipmap.DownsampleBlock
	if conf.Clipmap.ClipMinChange != "" {
		change, err := parseClipMinChange(conf.Clipmap.ClipMinChange)
		if err != nil {
			return cfg, err
		}
		cfg.ClipMinChange = change
	}
	filter, err := clipmap.ParseFilter(conf.Clipmap.Filter)
	if err != nil {
		return cfg, err
	}
	cfg.DownsampleFilter = filter
	switch {
	case conf.Frames <= 0:
		return cfg, errors.New("frame count must be positive").WithTag("frames", conf.Frames)
	case conf.Width <= 0 || conf.Height <= 0:
		return cfg, errors.New("invalid image size").WithTag("width", conf.Width).WithTag("height", conf.Height)
	case conf.Clipmap.ShadowSize <= 0:
		return cfg, errors.New("invalid shadow map size").WithTag("size", conf.Clipmap.ShadowSize)
	}
	return cfg, cfg.Validate()
}

func formatClipMinChange(change [clipmap.NumLevels]int) string {
	s := make([]string, len(change))
	for i, v := range change {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}

func parseClipMinChange(s string) (change [clipmap.NumLevels]int, err error) {
	fields := strings.Split(s, ",")
	if len(fields) != clipmap.NumLevels {
		return change, errors.New("clip min change needs one value per level").
			WithTag("value", s).
			WithTag("levels", clipmap.NumLevels)
	}
	for i, f := range fields {
		change[i], err = strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return change, errors.New("invalid clip min change").WithTag("level", i).Wrap(err)
		}
	}
	return change, nil
}

// loadParams reads cone tracing parameters from a JSON file over the
// defaults. A non empty display mode overrides the file.
func loadParams(file, display string) (conetrace.Params, error) {
	params := conetrace.DefaultParams()
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return params, errors.New("reading parameters file failed").WithTag("file", file).Wrap(err)
		}
		if err := json.Unmarshal(b, &params); err != nil {
			return params, errors.New("decoding parameters file failed").WithTag("file", file).Wrap(err)
		}
	}
	if display != "" {
		mode, err := conetrace.ParseDisplayMode(display)
		if err != nil {
			return params, err
		}
		params.DisplayMode = mode
	}
	if err := params.Validate(); err != nil {
		return params, errors.New("invalid cone tracing parameters").Wrap(err)
	}
	return params, nil
}

func loadScene(name string) (*scene.Mesh, error) {
	if name == "cornell" {
		return scene.CornellBox(4), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.New("opening scene failed").WithTag("scene", name).Wrap(err)
	}
	defer f.Close()
	mesh, err := scene.LoadSTL(f, scene.White)
	if err != nil {
		return nil, errors.New("loading scene failed").WithTag("scene", name).Wrap(err)
	}
	return mesh, nil
}

// flyThrough returns a path entering the scene bounds from the front and
// stopping in front of the center.
func flyThrough(bounds ms3.Box) scene.Path {
	c := bounds.Center()
	size := bounds.Size()
	at := func(x, y, z float32) ms3.Vec {
		return ms3.Add(c, ms3.MulElem(size, ms3.Vec{X: x, Y: y, Z: z}))
	}
	return scene.Path{
		Points: []ms3.Vec{at(0, 0.1, 1.2), at(0.15, 0.05, 0.8), at(-0.1, 0, 0.4)},
		Target: c,
	}
}

func runHooks(conf config, driver *pipeline.Driver, view scene.Viewpoint) error {
	if len(conf.Hooks) == 0 {
		return nil
	}
	hooks := debugview.NewHooks()
	cache := driver.Cache()
	in := debugview.Input{
		Cache:  cache,
		Tracer: driver.Tracer(),
		Slice: debugview.Slice{
			Face:  voxel.FacePosY,
			Axis:  1,
			Index: cache.Opacity.Border + cache.Opacity.Extent/2,
			Scale: 4,
		},
		Origin: view.Position,
		Dir:    view.Forward(),
	}
	for _, name := range conf.Hooks {
		name = strings.TrimSpace(name)
		f, err := os.Create(filepath.Join(conf.Output, name+".png"))
		if err != nil {
			return errors.New("creating hook output failed").WithTag("hook", name).Wrap(err)
		}
		err = hooks.Run(name, f, in)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
