package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"sl-indications/config"
	"sl-indications/models"
	"sl-indications/services"
	"sl-indications/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database", zap.String("driver", cfg.DBDriver))

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Snapshot{}, &models.Preparation{}, &models.Pack{},
		&models.LimitationText{}, &models.IndicationCode{},
		&models.CodeLink{}, &models.Segment{}, &models.NameCode{},
		&models.RunReport{},
	)

	pipeline := services.NewPipeline(db, cfg.SnapshotDir, logging)
	exporter := services.NewExporter(db, logging)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupPackRoutes(router, db, logging)
	setupLimitationRoutes(router, db, logging)
	setupSegmentRoutes(router, db, logging)
	setupRunRoutes(router, db, pipeline, exporter, cfg, logging)

	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled reconciliation...")
		report, err := pipeline.Run()
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
			return
		}
		logging.Info("Cron job completed",
			zap.Int("segments_matched", report.SegmentsMatched),
			zap.Int("segments_unresolved", report.SegmentsUnresolved))
		if cfg.UploadExports {
			uploadExport(exporter, cfg, logging)
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch cfg.DBDriver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

func setupPackRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/packs")

	rg.GET("/:gtin", func(c *gin.Context) {
		gtin := c.Param("gtin")
		var pack models.Pack
		if err := db.Where("gtin = ?", gtin).First(&pack).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "pack not found"})
				return
			}
			log.Error("DB error fetching pack", zap.String("gtin", gtin), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var prep models.Preparation
		db.First(&prep, pack.PreparationID)

		var links []models.CodeLink
		if err := db.Where("gtin = ?", gtin).Order("code").Find(&links).Error; err != nil {
			log.Error("DB error fetching code links", zap.String("gtin", gtin), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"pack":        pack,
			"preparation": prep,
			"code_links":  links,
		})
	})

	rg.POST("/query", func(c *gin.Context) {
		type PackQuery struct {
			AtcPrefix    string `json:"atc_prefix"`
			FormType     string `json:"form_type"`
			Code         string `json:"code"`
			BagDossierNo string `json:"bag_dossier_no"`
			IsFallback   *bool  `json:"is_fallback"`
			Limit        int    `json:"limit"`
		}

		var req PackQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Pack{})

		if req.AtcPrefix != "" {
			query = query.Where("preparation_id IN (?)",
				db.Model(&models.Preparation{}).Select("id").
					Where("atc_code LIKE ?", req.AtcPrefix+"%"))
		}
		if req.FormType != "" {
			query = query.Where("form_type = ?", req.FormType)
		}
		if req.BagDossierNo != "" {
			query = query.Where("bag_dossier_no = ?", req.BagDossierNo)
		}
		if req.Code != "" || req.IsFallback != nil {
			linkQuery := db.Model(&models.CodeLink{}).Select("gtin")
			if req.Code != "" {
				linkQuery = linkQuery.Where("code = ?", req.Code)
			}
			if req.IsFallback != nil {
				linkQuery = linkQuery.Where("is_fallback = ?", *req.IsFallback)
			}
			query = query.Where("gtin IN (?)", linkQuery)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var packs []models.Pack
		if err := query.Order("gtin").Find(&packs).Error; err != nil {
			log.Error("Database query for packs failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, packs)
	})
}

func setupLimitationRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/limitations")

	rg.GET("/:hash", func(c *gin.Context) {
		hash := c.Param("hash")
		var text models.LimitationText
		if err := db.Where("content_hash = ?", hash).First(&text).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "limitation text not found"})
				return
			}
			log.Error("DB error fetching limitation text", zap.String("hash", hash), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var segments []models.Segment
		if err := db.Where("limitation_text_id = ?", text.ID).
			Order("segment_order").Find(&segments).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		var codes []models.IndicationCode
		if err := db.Where("limitation_text_id = ?", text.ID).
			Order("code").Find(&codes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"text":     text,
			"segments": segments,
			"codes":    codes,
		})
	})
}

func setupSegmentRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/segments")

	rg.POST("/query", func(c *gin.Context) {
		type SegmentQuery struct {
			Matched       *bool    `json:"matched"`
			MatchSource   string   `json:"match_source"`
			MinConfidence *float64 `json:"min_confidence"`
			Code          string   `json:"code"`
			NameContains  string   `json:"name_contains"`
			IsCashback    *bool    `json:"is_cashback"`
			Limit         int      `json:"limit"`
		}

		var req SegmentQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Segment{})

		if req.Matched != nil {
			if *req.Matched {
				query = query.Where("matched_code IS NOT NULL")
			} else {
				query = query.Where("matched_code IS NULL")
			}
		}
		if req.MatchSource != "" {
			query = query.Where("match_source = ?", req.MatchSource)
		}
		if req.MinConfidence != nil {
			query = query.Where("match_confidence >= ?", *req.MinConfidence)
		}
		if req.Code != "" {
			query = query.Where("matched_code = ?", req.Code)
		}
		if req.NameContains != "" {
			query = query.Where("LOWER(name_de) LIKE ?",
				"%"+strings.ToLower(req.NameContains)+"%")
		}
		if req.IsCashback != nil {
			query = query.Where("is_cashback = ?", *req.IsCashback)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var segments []models.Segment
		if err := query.Order("limitation_text_id, segment_order").Find(&segments).Error; err != nil {
			log.Error("Database query for segments failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, segments)
	})
}

func setupRunRoutes(router *gin.Engine, db *gorm.DB, pipeline *services.Pipeline,
	exporter *services.Exporter, cfg *config.Config, log *zap.Logger) {

	router.GET("/summary", func(c *gin.Context) {
		summary, err := exporter.Summarize()
		if err != nil {
			log.Error("Failed to build summary", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	router.GET("/export/csv", func(c *gin.Context) {
		data, err := exporter.ExportCSV()
		if err != nil {
			log.Error("CSV export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="sku_indication_export.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	})

	rg := router.Group("/runs")

	rg.GET("/", func(c *gin.Context) {
		var reports []models.RunReport
		if err := db.Order("id desc").Limit(50).Find(&reports).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, reports)
	})

	rg.POST("/", func(c *gin.Context) {
		go func() {
			report, err := pipeline.Run()
			if err != nil {
				log.Error("Async pipeline run failed", zap.Error(err))
				return
			}
			log.Info("Async pipeline run completed",
				zap.Int("segments_matched", report.SegmentsMatched),
				zap.Int("segments_unresolved", report.SegmentsUnresolved))
			if cfg.UploadExports {
				uploadExport(exporter, cfg, log)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Reconciliation run triggered."})
	})
}

func uploadExport(exporter *services.Exporter, cfg *config.Config, log *zap.Logger) {
	data, err := exporter.ExportCSV()
	if err != nil {
		log.Error("CSV export for upload failed", zap.Error(err))
		return
	}
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		log.Error("S3 client creation failed", zap.Error(err))
		return
	}
	key := fmt.Sprintf("%s/sku_indication_export-%s.csv",
		cfg.ExportPrefix, time.Now().UTC().Format("2006-01-02"))
	link, err := storage.UploadFile(s3Client, cfg.StratoS3Bucket, key, data, cfg)
	if err != nil {
		log.Error("Export upload failed", zap.Error(err))
		return
	}
	log.Info("Export uploaded", zap.String("link", link))
}
