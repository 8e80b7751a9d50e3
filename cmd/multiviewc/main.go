// Command multiviewc projects annotated 3D boxes into the calibrated camera
// views of one frame and prints the image-space rectangles as JSON.
//
//	multiviewc -annotations annotations/0007.json -frame 7 -cams 0,2 -plot-dir plots
//	multiviewc migrate status -db runs.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/multiviewc/internal/annotation"
	"github.com/banshee-data/multiviewc/internal/bbox"
	"github.com/banshee-data/multiviewc/internal/calib"
	"github.com/banshee-data/multiviewc/internal/config"
	"github.com/banshee-data/multiviewc/internal/db"
	"github.com/banshee-data/multiviewc/internal/pipeline"
	"github.com/banshee-data/multiviewc/internal/render"
	"github.com/banshee-data/multiviewc/internal/storage/sqlite"
	"github.com/banshee-data/multiviewc/internal/version"
)

type options struct {
	configPath  string
	annotations string
	frame       int
	cams        string
	dbPath      string
	plotDir     string
	image       string
	mapPath     string
	rect        bool
	version     bool
}

// Summary is the JSON document written to stdout.
type Summary struct {
	RunID   string          `json:"run_id,omitempty"`
	Frame   int             `json:"frame"`
	Cameras []CameraSummary `json:"cameras"`
}

// CameraSummary is one camera's entry in Summary.
type CameraSummary struct {
	Camera       string          `json:"camera"`
	YawOffsetDeg float64         `json:"yaw_offset_deg"`
	Error        string          `json:"error,omitempty"`
	Objects      []ObjectSummary `json:"objects"`
}

// ObjectSummary is one projected object.
type ObjectSummary struct {
	ID         string          `json:"id"`
	Action     string          `json:"action,omitempty"`
	Status     pipeline.Status `json:"status"`
	Error      string          `json:"error,omitempty"`
	HeadingDeg float64         `json:"heading_deg"`
	Rect       *bbox.Rect4     `json:"rect,omitempty"`
	Corners    []bbox.Point2   `json:"corners,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("multiviewc: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "migrate" {
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		dbPath := fs.String("db", "multiviewc.db", "path to sqlite db")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		rest := fs.Args()
		// Allow "migrate status -db x" as well as "migrate -db x status".
		if len(rest) > 1 {
			if err := fs.Parse(rest[1:]); err != nil {
				return err
			}
			rest = append(rest[:1], fs.Args()...)
		}
		return db.RunMigrateCommand(stdout, rest, *dbPath)
	}

	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.version {
		_, err := fmt.Fprintln(stdout, version.String())
		return err
	}

	cfg := config.EmptyDatasetConfig()
	if opts.configPath != "" {
		if cfg, err = config.LoadDatasetConfig(opts.configPath); err != nil {
			return err
		}
	}

	policy, err := pipeline.ParseBehindCameraPolicy(cfg.GetBehindCameraPolicy())
	if err != nil {
		return err
	}

	store := newStore(cfg)
	cameras, err := selectCameras(opts.cams, store.Cameras())
	if err != nil {
		return err
	}

	frame, err := annotation.LoadFile(opts.annotations, opts.frame)
	if err != nil {
		return err
	}

	projector := pipeline.NewProjector(store, pipeline.Options{
		BehindCamera: policy,
		Workers:      cfg.GetWorkers(),
	})
	res, err := projector.ProjectFrame(ctx, frame, cameras)
	if err != nil {
		return err
	}

	summary := summarize(res)

	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = cfg.GetDBPath()
	}
	if dbPath != "" {
		runID, err := persist(dbPath, opts, cfg, res)
		if err != nil {
			return err
		}
		summary.RunID = runID
	}

	if opts.plotDir != "" {
		if err := writeOverlays(opts, cfg, res); err != nil {
			return err
		}
	}

	if opts.mapPath != "" {
		if err := writeMap(opts.mapPath, frame, store, cameras); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("multiviewc", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "dataset config JSON (defaults apply when empty)")
	fs.StringVar(&o.annotations, "annotations", "", "annotation JSON for one frame")
	fs.IntVar(&o.frame, "frame", 0, "frame index")
	fs.StringVar(&o.cams, "cams", "", "comma-separated camera indices (default: all configured)")
	fs.StringVar(&o.dbPath, "db", "", "sqlite db to record the run in (overrides db_path)")
	fs.StringVar(&o.plotDir, "plot-dir", "", "directory for per-camera overlay PNGs")
	fs.StringVar(&o.image, "image", "", "camera image path template; {camera} and {frame} are substituted")
	fs.StringVar(&o.mapPath, "map", "", "write a bird's-eye HTML map to this path")
	fs.BoolVar(&o.rect, "rect", false, "draw the enclosing rectangle on overlays")
	fs.BoolVar(&o.version, "version", false, "print build information and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.annotations == "" && !o.version {
		return o, fmt.Errorf("-annotations must be provided")
	}
	return o, nil
}

func newStore(cfg *config.DatasetConfig) *calib.Store {
	locators := make(map[int]calib.Locator)
	for _, e := range cfg.GetCameras() {
		locators[e.Index] = calib.Locator{Intrinsic: e.Intrinsic, Extrinsic: e.Extrinsic}
	}
	return calib.NewStore(os.DirFS(cfg.GetCalibRoot()), locators)
}

// selectCameras parses the -cams list. An empty list selects every
// configured camera.
func selectCameras(list string, configured []int) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return configured, nil
	}
	known := make(map[int]bool, len(configured))
	for _, c := range configured {
		known[c] = true
	}
	seen := make(map[int]bool)
	var out []int
	for _, f := range strings.Split(list, ",") {
		c, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid camera index %q: %w", f, err)
		}
		if !known[c] {
			return nil, fmt.Errorf("camera %d is not in the configured camera table", c)
		}
		if seen[c] {
			return nil, fmt.Errorf("camera %d listed more than once", c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func summarize(res *pipeline.FrameResult) Summary {
	s := Summary{Frame: res.Index, Cameras: make([]CameraSummary, 0, len(res.Cameras))}
	for _, c := range res.Cameras {
		cs := CameraSummary{
			Camera:       annotation.CameraKey(c.Camera),
			YawOffsetDeg: c.YawOffsetDeg,
			Objects:      make([]ObjectSummary, 0, len(c.Objects)),
		}
		if c.Err != nil {
			cs.Error = c.Err.Error()
		}
		for _, o := range c.Objects {
			obj := ObjectSummary{
				ID:         o.ID,
				Action:     o.Action,
				Status:     o.Status(),
				HeadingDeg: o.HeadingDeg,
			}
			if o.OK() {
				rect := o.Rect
				obj.Rect = &rect
				obj.Corners = o.Corners
			} else {
				obj.Error = o.Err.Error()
			}
			cs.Objects = append(cs.Objects, obj)
		}
		s.Cameras = append(s.Cameras, cs)
	}
	return s
}

func persist(path string, opts options, cfg *config.DatasetConfig, res *pipeline.FrameResult) (string, error) {
	database, err := db.NewDB(path)
	if err != nil {
		return "", err
	}
	defer database.Close()

	run := &sqlite.ProjectionRun{
		FrameIndex:   res.Index,
		Source:       opts.annotations,
		BehindPolicy: cfg.GetBehindCameraPolicy(),
	}
	if err := sqlite.NewProjectionStore(database.DB).RecordFrame(run, res); err != nil {
		return "", err
	}
	return run.RunID, nil
}

func writeOverlays(opts options, cfg *config.DatasetConfig, res *pipeline.FrameResult) error {
	ov := render.OverlayOptions{
		ImageWidth:  cfg.GetImageWidth(),
		ImageHeight: cfg.GetImageHeight(),
		ShowRect:    opts.rect,
		Palette:     render.FramePalette(res),
	}
	for i := range res.Cameras {
		cam := &res.Cameras[i]
		if cam.Err != nil {
			continue
		}
		key := annotation.CameraKey(cam.Camera)
		var img image.Image
		if opts.image != "" {
			path := strings.NewReplacer("{camera}", key, "{frame}", fmt.Sprintf("%04d", res.Index)).Replace(opts.image)
			loaded, err := render.LoadImage(path)
			if err != nil {
				return err
			}
			img = loaded
		}
		out := filepath.Join(opts.plotDir, fmt.Sprintf("%s_%04d.png", key, res.Index))
		if err := render.SaveOverlay(out, img, cam, ov); err != nil {
			return fmt.Errorf("camera %s: %w", key, err)
		}
	}
	return nil
}

func writeMap(path string, frame *annotation.Frame, store *calib.Store, cameras []int) error {
	var cals []*calib.CameraCalibration
	for _, c := range cameras {
		cal, err := store.Load(c)
		if err != nil {
			continue
		}
		cals = append(cals, cal)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create map: %w", err)
	}
	if err := render.BirdsEye(f, frame, cals, render.MapOptions{}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
