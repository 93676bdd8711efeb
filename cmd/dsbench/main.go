// Command dsbench runs the validation suite on the CPU device and prints
// how the double-single and bit-aliased kernels compare with float64.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"honnef.co/go/dsgpu"
	"honnef.co/go/dsgpu/dispatch"
	"honnef.co/go/dsgpu/engine/cpu_engine"
	"honnef.co/go/dsgpu/validate"
)

func main() {
	var (
		configPath string
		verbose    bool
		width      int
		height     int
		maxIter    int
		elements   int
		path       string
		tolerance  float64
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&configPath, "config", "", "Read configuration from `file`")
	flag.BoolVar(&verbose, "v", false, "Log debug output")
	flag.IntVar(&width, "width", 0, "Mandelbrot grid width")
	flag.IntVar(&height, "height", 0, "Mandelbrot grid height")
	flag.IntVar(&maxIter, "max-iter", 0, "Iteration limit")
	flag.IntVar(&elements, "n", 0, "Length of the arithmetic arrays")
	flag.StringVar(&path, "path", "", "Emulation `path`: paired or bits")
	flag.Float64Var(&tolerance, "tol", 0, "Largest acceptable relative error")
	flag.Parse()

	if len(flag.Args()) != 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Flags only override the configuration when given.
	overrides := map[string]any{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			overrides["verbose"] = verbose
		case "width":
			overrides["suite.width"] = width
		case "height":
			overrides["suite.height"] = height
		case "max-iter":
			overrides["suite.max_iter"] = maxIter
		case "n":
			overrides["suite.elements"] = elements
		case "path":
			overrides["suite.path"] = path
		case "tol":
			overrides["tolerance"] = tolerance
		}
	})

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	cfg, err := Load(configPath, overrides)
	if err != nil {
		dief("Couldn't load configuration: %s", err)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	dsgpu.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	p, err := validate.ParsePath(cfg.Suite.Path)
	if err != nil {
		dief("%s", err)
	}
	dev := cpu_engine.New(&cpu_engine.Options{
		Workers:      cfg.Device.Workers,
		MaxGroupSize: cfg.Device.MaxGroupSize,
	})

	reports, err := runSuite(dev, cfg.Suite, p)
	if err != nil {
		dief("%s", err)
	}

	fmt.Println(renderSummary(reports, cfg.Tolerance))
	for _, r := range reports {
		fmt.Println(renderSamples(r))
	}
	for _, r := range reports {
		if !r.Agrees(cfg.Tolerance) {
			os.Exit(1)
		}
	}
}

func fill[T any](n int, f func(i int) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func runSuite(dev dispatch.Device, cfg SuiteConfig, p validate.Path) ([]*validate.Report, error) {
	n := cfg.Elements
	pis := fill(n, func(int) float64 { return math.Pi })
	cpis := fill(n, func(int) complex128 { return complex(math.Pi, math.Pi) })
	// Operands for the functions need to stay in their domains.
	xs := fill(n, func(i int) float64 { return 0.5 + float64(i%1000)/100 })
	ys := fill(n, func(i int) float64 { return 1 + math.Sin(float64(i)) })
	cxs := fill(n, func(i int) complex128 { return complex(xs[i], -ys[i]) })
	cys := fill(n, func(i int) complex128 { return complex(ys[i], xs[i]) })
	cs := validate.DefaultGrid(cfg.Width, cfg.Height).Coords()

	steps := []struct {
		name string
		run  func() (*validate.Report, error)
	}{
		{"add arrays", func() (*validate.Report, error) { return validate.AddArrays(dev, pis, pis, 1) }},
		{"add complex arrays", func() (*validate.Report, error) { return validate.AddComplexArrays(dev, cpis, cpis) }},
		{"real ops", func() (*validate.Report, error) { return validate.RealOps(dev, xs, ys, p) }},
		{"complex ops", func() (*validate.Report, error) { return validate.ComplexOps(dev, cxs, cys, p) }},
		{"mandelbrot counts", func() (*validate.Report, error) {
			return validate.MandelbrotCounts(dev, cs, cfg.MaxIter, cfg.Bailout)
		}},
		{"mandelbrot", func() (*validate.Report, error) {
			return validate.Mandelbrot(dev, cs, cfg.MaxIter, cfg.Bailout, p)
		}},
	}

	log := dsgpu.Logger()
	reports := make([]*validate.Report, 0, len(steps))
	for _, step := range steps {
		log.Info("running", "step", step.name, "path", p)
		r, err := step.run()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
