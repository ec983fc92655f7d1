package services

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sl-indications/cashback"
	"sl-indications/models"
	"sl-indications/providers/slcatalog"
)

var (
	pipelineRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sl_pipeline_runs_total",
		Help: "Number of completed reconciliation runs",
	})
	snapshotsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sl_snapshots_ingested_total",
		Help: "Number of catalog snapshots ingested",
	})
	segmentsUnresolved = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sl_segments_unresolved",
		Help: "Segments left without a code after the last run",
	})
)

func init() {
	prometheus.MustRegister(pipelineRuns, snapshotsIngested, segmentsUnresolved)
}

// Pipeline runs the full reconciliation: discover and register snapshots,
// ingest them in release order, fan codes out to pack level, segment the
// texts, derive the name-code reference map and run the matching cascade.
// Every stage is idempotent, so re-running over the same snapshot directory
// is safe.
type Pipeline struct {
	DB       *gorm.DB
	Logger   *zap.Logger
	Loader   *slcatalog.Loader
	Registry *Registry
}

func NewPipeline(db *gorm.DB, snapshotDir string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		DB:       db,
		Logger:   logger,
		Loader:   slcatalog.NewLoader(snapshotDir, logger),
		Registry: NewRegistry(db, logger),
	}
}

// Run executes one full pipeline pass and persists a run report.
func (p *Pipeline) Run() (*models.RunReport, error) {
	report := models.RunReport{StartedAt: time.Now()}

	store := NewStore(p.DB, p.Logger)
	ingestor := NewIngestor(store, p.Logger)

	files, err := p.Loader.Discover()
	if err != nil {
		return nil, fmt.Errorf("discovering snapshots: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no snapshot files in %s", p.Loader.Dir)
	}

	for _, f := range files {
		snap, err := p.Registry.Register(f.Name, f.ReleaseDate)
		if err != nil {
			return nil, err
		}
		doc, err := p.Loader.Load(f)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot %s: %w", f.Name, err)
		}
		stats, err := ingestor.Ingest(doc, snap.Sequence)
		if err != nil {
			return nil, fmt.Errorf("ingesting snapshot %s: %w", f.Name, err)
		}
		p.Logger.Info("Snapshot ingested",
			zap.String("source", f.Name),
			zap.Int("sequence", snap.Sequence),
			zap.Int("preparations", stats.Preparations),
			zap.Int("packs", stats.Packs),
			zap.Int("skipped", stats.SkippedFragments))
		snapshotsIngested.Inc()

		report.Snapshots++
		// Each snapshot describes the whole catalog, so the newest one's
		// preparation and pack counts replace the previous values.
		report.Preparations = stats.Preparations
		report.Packs = stats.Packs
		report.Texts += stats.Texts
		report.CodesStructured += stats.CodesStructured
		report.CodesTextParsed += stats.CodesTextParsed
		report.CodesFallback += stats.CodesFallback
		report.SkippedFragments += stats.SkippedFragments
	}
	report.IdentityConflicts = store.IdentityConflicts

	links, err := NewFanOut(p.DB, p.Registry, p.Logger).Run()
	if err != nil {
		return nil, fmt.Errorf("fanning out code links: %w", err)
	}
	report.CodeLinks = links

	segments, err := p.persistSegments()
	if err != nil {
		return nil, fmt.Errorf("segmenting texts: %w", err)
	}
	report.Segments = segments

	if err := NewRefMapBuilder(p.DB, p.Logger).Rebuild(); err != nil {
		return nil, fmt.Errorf("rebuilding name-code map: %w", err)
	}

	counts, err := NewCascade(p.DB, p.Logger).Run()
	if err != nil {
		return nil, fmt.Errorf("running matching cascade: %w", err)
	}
	report.SegmentsUnresolved = counts["unresolved"]

	var matched int64
	if err := p.DB.Model(&models.Segment{}).
		Where("matched_code IS NOT NULL").Count(&matched).Error; err != nil {
		return nil, err
	}
	report.SegmentsMatched = int(matched)

	report.FinishedAt = time.Now()
	if err := p.DB.Create(&report).Error; err != nil {
		return nil, fmt.Errorf("saving run report: %w", err)
	}

	pipelineRuns.Inc()
	segmentsUnresolved.Set(float64(report.SegmentsUnresolved))
	p.Logger.Info("Pipeline run finished",
		zap.Int("snapshots", report.Snapshots),
		zap.Int("code_links", report.CodeLinks),
		zap.Int("segments", report.Segments),
		zap.Int("matched", report.SegmentsMatched),
		zap.Int("unresolved", report.SegmentsUnresolved),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return &report, nil
}

// persistSegments splits every deduplicated text that has no segments yet.
// Existing segments are left alone so the cascade's assignments survive
// re-runs. Texts whose limitation code marks a non-indication category are
// never segmented. Returns the total segment count.
func (p *Pipeline) persistSegments() (int, error) {
	var texts []models.LimitationText
	if err := p.DB.Find(&texts).Error; err != nil {
		return 0, err
	}

	for i := range texts {
		t := &texts[i]
		if nonIndicationLimCodes[t.LimitationCode] {
			continue
		}
		var existing int64
		if err := p.DB.Model(&models.Segment{}).
			Where("limitation_text_id = ?", t.ID).Count(&existing).Error; err != nil {
			return 0, err
		}
		if existing > 0 {
			continue
		}

		for _, seg := range SegmentText(t.DescriptionDe, t.DescriptionFr, t.DescriptionIt) {
			row := models.Segment{
				LimitationTextID: t.ID,
				SegmentOrder:     seg.Order,
				NameDe:           seg.NameDe,
				NameFr:           seg.NameFr,
				NameIt:           seg.NameIt,
				TextDe:           seg.TextDe,
				TextFr:           seg.TextFr,
				TextIt:           seg.TextIt,
			}
			annotateSegmentCashback(&row)
			if err := p.DB.Create(&row).Error; err != nil {
				return 0, fmt.Errorf("creating segment %d of text %d: %w", seg.Order, t.ID, err)
			}
		}
	}

	var total int64
	if err := p.DB.Model(&models.Segment{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func annotateSegmentCashback(s *models.Segment) {
	if s.TextFr == nil || *s.TextFr == "" {
		return
	}
	plain := cashback.CleanHTML(*s.TextFr)
	det := cashback.Detect(plain)
	if !det.IsCashback {
		return
	}
	s.IsCashback = true
	s.CashbackCompany = det.Company
	calc := cashback.ExtractCalculation(plain)
	s.CashbackCalcType = calc.Type
	s.CashbackCalcValue = calc.Value
	s.CashbackUnit = cashback.ExtractUnit(plain)
}
