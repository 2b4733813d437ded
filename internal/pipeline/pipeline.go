// Package pipeline orchestrates one end-to-end run: fetch the source
// tables, resolve crime records to geometry, associate them with bus
// routes, aggregate per-route statistics, and write the output artifacts.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harbour-analytics/transit-crime-cli/internal/aggregate"
	"github.com/harbour-analytics/transit-crime-cli/internal/arcgis"
	"github.com/harbour-analytics/transit-crime-cli/internal/assemble"
	"github.com/harbour-analytics/transit-crime-cli/internal/associate"
	"github.com/harbour-analytics/transit-crime-cli/internal/config"
	"github.com/harbour-analytics/transit-crime-cli/internal/crs"
	"github.com/harbour-analytics/transit-crime-cli/internal/fetcher"
	"github.com/harbour-analytics/transit-crime-cli/internal/ingest"
	"github.com/harbour-analytics/transit-crime-cli/internal/model"
	"github.com/harbour-analytics/transit-crime-cli/internal/resolve"
	"github.com/harbour-analytics/transit-crime-cli/internal/schema"
	"github.com/harbour-analytics/transit-crime-cli/internal/shapefile"
	"github.com/harbour-analytics/transit-crime-cli/internal/store"
)

// Pipeline runs the fetch-resolve-associate-aggregate-assemble sequence.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
	httpF *fetcher.HTTPFetcher
	ftpF  *fetcher.FTPFetcher
	gis   *arcgis.Client
}

// New creates a Pipeline with fetchers built from the config.
func New(cfg *config.Config, st store.Store) *Pipeline {
	httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:      cfg.Fetch.UserAgent,
		Timeout:        time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:     cfg.Fetch.MaxRetries,
		RequestsPerSec: cfg.Fetch.RequestsPerSec,
	})
	return &Pipeline{
		cfg:   cfg,
		store: st,
		httpF: httpF,
		ftpF:  fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
		gis:   arcgis.NewClient(httpF, cfg.Fetch.PageSize),
	}
}

// sources holds everything the fetch stage produces.
type sources struct {
	ingested ingest.Result
	tiers    []resolve.Tier
	routes   []model.Route
	stops    []model.Stop
}

// Run executes the full pipeline and records progress in the store. The
// returned Run carries the final diagnostics; a stage failure is recorded
// against the run before the error is returned.
func (p *Pipeline) Run(ctx context.Context) (*model.Run, error) {
	if len(p.cfg.Sources.Tiers) == 0 {
		return nil, eris.New("pipeline: no resolution tiers configured")
	}

	run, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run")

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}
	fail := func(stage string, stageErr error) (*model.Run, error) {
		wrapped := eris.Wrap(stageErr, "pipeline: "+stage)
		if failErr := p.store.FailRun(ctx, run.ID, wrapped.Error()); failErr != nil {
			log.Warn("pipeline: failed to record failure", zap.Error(failErr))
		}
		return nil, wrapped
	}

	stageStart := time.Now()
	stageMillis := make(map[string]int64, 4)
	endStage := func(name string) {
		stageMillis[name] = time.Since(stageStart).Milliseconds()
		stageStart = time.Now()
	}

	// ===== Fetch =====
	setStatus(model.RunStatusFetching)
	src, err := p.fetchSources(ctx)
	if err != nil {
		return fail("fetch", err)
	}
	endStage("fetch")

	diag := &model.Diagnostics{
		CrimeRows:         src.ingested.TotalRows,
		MalformedRows:     src.ingested.MalformedRows,
		DistrictFiltered:  src.ingested.DistrictFiltered,
		InvalidMonths:     src.ingested.InvalidMonths,
		MissingOffence:    src.ingested.MissingOffence,
		DuplicateRouteIDs: countDuplicateRoutes(src.routes),
	}

	// ===== Resolve =====
	setStatus(model.RunStatusResolving)
	resolved := resolve.Resolve(src.ingested.Records, src.tiers)
	diag.ResolvedByTier = resolved.ResolvedByTier
	diag.Unmatched = resolved.Unmatched
	endStage("resolve")

	// ===== Associate =====
	setStatus(model.RunStatusAssociating)
	proj, err := crs.ForEPSG(p.cfg.Spatial.ProjectedEPSG)
	if err != nil {
		return fail("associate", err)
	}
	engine := associate.New(proj, associate.Options{
		BufferMeters:  p.cfg.Spatial.BufferMeters,
		UseStopMethod: p.cfg.Spatial.UseStopMethod,
	})
	associations, err := engine.Associate(resolved.Resolved, src.routes, src.stops)
	if err != nil {
		return fail("associate", err)
	}
	diag.Associations = len(associations)
	diag.ByMethod = countByMethod(associations)
	endStage("associate")

	// ===== Aggregate =====
	setStatus(model.RunStatusAggregating)
	agg := aggregate.Aggregate(associations, resolved.Resolved)
	diag.RoutesWithActivity = len(agg.Totals)
	endStage("aggregate")
	diag.StageMillis = stageMillis

	// ===== Assemble =====
	asm := assemble.New(assemble.Options{
		BufferMeters: p.cfg.Spatial.BufferMeters,
		MethodTag:    methodTag(p.cfg.Spatial),
		DataSource:   p.cfg.Sources.Label,
		GeoJSONPath:  filepath.Join(p.cfg.Output.Dir, p.cfg.Output.GeoJSONFile),
		StatsPath:    filepath.Join(p.cfg.Output.Dir, p.cfg.Output.StatsFile),
	})
	if err := asm.Write(src.routes, agg); err != nil {
		return fail("assemble", err)
	}

	if p.cfg.Output.DebugCSV != "" {
		if err := writeDebugCSV(p.cfg.Output.DebugCSV, resolved.Resolved, associations); err != nil {
			log.Warn("pipeline: debug csv write failed", zap.Error(err))
		}
	}

	if err := p.store.CompleteRun(ctx, run.ID, diag); err != nil {
		log.Warn("pipeline: failed to record completion", zap.Error(err))
	}

	log.Info("pipeline: run complete",
		zap.Int("crime_rows", diag.CrimeRows),
		zap.Int("unmatched", diag.Unmatched),
		zap.Int("associations", diag.Associations),
		zap.Int("routes_with_activity", diag.RoutesWithActivity),
	)

	now := time.Now().UTC()
	run.Status = model.RunStatusComplete
	run.Diagnostics = diag
	run.FinishedAt = &now
	return run, nil
}

// fetchSources downloads the crime table, every tier's reference table, and
// the route/stop layers concurrently. Any failing source aborts the whole
// fetch; the resolver would silently mismatch on a partial tier chain.
func (p *Pipeline) fetchSources(ctx context.Context) (*sources, error) {
	src := &sources{tiers: make([]resolve.Tier, len(p.cfg.Sources.Tiers))}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := p.fetchCrimes(ctx)
		if err != nil {
			return err
		}
		src.ingested = res
		return nil
	})

	padWidth := p.cfg.Sources.Tiers[0].KeyWidth
	for i, tc := range p.cfg.Sources.Tiers {
		g.Go(func() error {
			tier, err := p.fetchTier(ctx, tc, i+1, padWidth)
			if err != nil {
				return err
			}
			src.tiers[i] = tier
			return nil
		})
	}

	g.Go(func() error {
		features, err := p.gis.FetchAll(ctx, p.cfg.Sources.RoutesURL,
			[]string{p.cfg.Sources.RouteIDField, p.cfg.Sources.RouteModeField})
		if err != nil {
			return eris.Wrap(err, "fetch routes")
		}
		src.routes = arcgis.Routes(features,
			p.cfg.Sources.RouteIDField, p.cfg.Sources.RouteModeField, p.cfg.Sources.RouteMode)
		return nil
	})

	if p.cfg.Spatial.UseStopMethod && p.cfg.Sources.StopsURL != "" {
		g.Go(func() error {
			features, err := p.gis.FetchAll(ctx, p.cfg.Sources.StopsURL,
				[]string{p.cfg.Sources.StopIDField, p.cfg.Sources.StopRoutesField})
			if err != nil {
				return eris.Wrap(err, "fetch stops")
			}
			src.stops = arcgis.Stops(features,
				p.cfg.Sources.StopIDField, p.cfg.Sources.StopRoutesField)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: sources fetched",
		zap.Int("crime_rows", src.ingested.TotalRows),
		zap.Int("tiers", len(src.tiers)),
		zap.Int("routes", len(src.routes)),
		zap.Int("stops", len(src.stops)),
	)
	return src, nil
}

// fetchCrimes downloads and ingests the crime table.
func (p *Pipeline) fetchCrimes(ctx context.Context) (ingest.Result, error) {
	mapping := schema.Default()
	if p.cfg.Schema.Path != "" {
		var err error
		mapping, err = schema.LoadFile(p.cfg.Schema.Path)
		if err != nil {
			return ingest.Result{}, err
		}
	}

	opts := ingest.Options{
		Mapping:   mapping,
		Districts: p.cfg.Metro.Districts,
		KeyWidth:  p.cfg.Sources.Tiers[0].KeyWidth,
	}

	switch p.cfg.Sources.CrimeFormat {
	case "xlsx":
		rows, err := p.fetchCrimeXLSX(ctx)
		if err != nil {
			return ingest.Result{}, err
		}
		rowCh, errCh := ingest.RowChannel(rows)
		return ingest.Ingest(ctx, rowCh, errCh, opts)
	case "csv", "":
		f, err := fetcher.ForURL(p.cfg.Sources.CrimeURL, p.httpF, p.ftpF)
		if err != nil {
			return ingest.Result{}, err
		}
		body, err := f.Download(ctx, p.cfg.Sources.CrimeURL)
		if err != nil {
			return ingest.Result{}, eris.Wrap(err, "fetch crime table")
		}
		defer func() { _ = body.Close() }()

		rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
			Charset:    "latin1",
			LazyQuotes: true,
			TrimSpace:  true,
		})
		return ingest.Ingest(ctx, rowCh, errCh, opts)
	default:
		return ingest.Result{}, eris.Errorf("pipeline: unsupported crime format %q", p.cfg.Sources.CrimeFormat)
	}
}

// fetchCrimeXLSX downloads the workbook to a temp file and reads it whole;
// the xlsx reader needs random access.
func (p *Pipeline) fetchCrimeXLSX(ctx context.Context) ([][]string, error) {
	f, err := fetcher.ForURL(p.cfg.Sources.CrimeURL, p.httpF, p.ftpF)
	if err != nil {
		return nil, err
	}
	body, err := f.Download(ctx, p.cfg.Sources.CrimeURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetch crime workbook")
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp("", "crime-*.xlsx")
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create temp workbook")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return nil, eris.Wrap(err, "pipeline: spool workbook")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "pipeline: close temp workbook")
	}

	return fetcher.ReadXLSX(tmp.Name(), fetcher.XLSXOptions{})
}

// fetchTier builds one resolution tier from either a feature service or a
// local shapefile.
func (p *Pipeline) fetchTier(ctx context.Context, tc config.TierConfig, rank, padWidth int) (resolve.Tier, error) {
	var rows []model.AreaGeometry
	var err error

	switch {
	case tc.ShapefilePath != "":
		rows, err = shapefile.LoadAreaTable(tc.ShapefilePath, tc.KeyField, tc.KeyWidth, rank)
	case tc.URL != "":
		var features []*geojson.Feature
		features, err = p.gis.FetchAll(ctx, tc.URL, []string{tc.KeyField})
		if err == nil {
			rows = arcgis.AreaTable(features, tc.KeyField, tc.KeyWidth, rank)
		}
	default:
		err = eris.Errorf("tier %s: no url or shapefile path", tc.Name)
	}
	if err != nil {
		return resolve.Tier{}, eris.Wrapf(err, "fetch tier %s", tc.Name)
	}

	key := resolve.IdentityKey(tc.KeyWidth)
	if tc.TruncateTo > 0 {
		key = resolve.TruncateKey(padWidth, tc.TruncateTo)
	}

	kind := model.KindPolygon
	if len(rows) > 0 {
		kind = rows[0].Kind
	}

	return resolve.Tier{
		Name:  tc.Name,
		Rank:  rank,
		Key:   key,
		Kind:  kind,
		Table: resolve.NewTable(rows),
	}, nil
}

func countDuplicateRoutes(routes []model.Route) int {
	seen := make(map[string]bool, len(routes))
	dups := 0
	for _, r := range routes {
		if seen[r.ID] {
			dups++
			continue
		}
		seen[r.ID] = true
	}
	if dups > 0 {
		zap.L().Warn("pipeline: duplicate route identifiers in source layer",
			zap.Int("duplicates", dups),
		)
	}
	return dups
}

func countByMethod(associations []model.Association) map[string]int {
	byMethod := make(map[string]int, 2)
	for _, a := range associations {
		byMethod[string(a.Method)]++
	}
	return byMethod
}

func methodTag(sp config.SpatialConfig) string {
	tag := "line_intersect"
	if sp.BufferMeters > 0 {
		tag = "buffered_line_intersect"
	}
	if sp.UseStopMethod {
		tag += " + stop_contains"
	}
	return tag
}
