// 种子导入工具：从 JSON 文件批量写入点位，用于演练环境初始化与灾备恢复
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"time"

	"pontos-api/internal/cities"
	"pontos-api/internal/logger"
	"pontos-api/internal/migrate"
	"pontos-api/internal/points"
	"pontos-api/internal/store"
	"pontos-api/internal/utils"

	"github.com/joho/godotenv"
)

// 输入格式：候选点位数组，citySlug 决定目标分区；坐标必须显式给出（工具不做地理编码）
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	path := flag.String("file", "", "JSON file with an array of point candidates")
	dryRun := flag.Bool("dry-run", false, "validate only, do not write")
	flag.Parse()
	if *path == "" {
		l.Error("seed_missing_file")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		l.Error("seed_read_error", "path", *path, "err", err)
		os.Exit(1)
	}
	var candidates []points.Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		l.Error("seed_decode_error", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var ok, bad int
	for i, c := range candidates {
		c = c.Sanitized()
		if errs := points.Validate(c, false); len(errs) > 0 {
			l.Warn("seed_invalid", "index", i, "field", errs[0].Field, "message", errs[0].Message)
			bad++
			continue
		}
		if c.Lat == nil || c.Lng == nil {
			l.Warn("seed_missing_coords", "index", i, "name", c.Name)
			bad++
			continue
		}
		city, found := cities.BySlug(c.CitySlug)
		if !found {
			l.Warn("seed_unknown_city", "index", i, "city", c.CitySlug)
			bad++
			continue
		}
		capacity := c.Capacity
		if c.Type != points.TypeShelter {
			capacity = nil
		}
		if *dryRun {
			ok++
			continue
		}
		id, err := st.Create(ctx, city, points.Point{
			Type:          c.Type,
			Name:          c.Name,
			Address:       c.Address,
			Complement:    c.Complement,
			Hours:         c.Hours,
			DonationKinds: c.DonationKinds,
			ContactName:   c.ContactName,
			ContactPhone:  c.ContactPhone,
			Capacity:      capacity,
			Lat:           *c.Lat,
			Lng:           *c.Lng,
			CitySlug:      city.Slug,
		})
		if err != nil {
			l.Error("seed_create_error", "index", i, "err", err)
			bad++
			continue
		}
		l.Debug("seed_created", "index", i, "id", id)
		ok++
	}
	l.Info("seed_done", "ok", ok, "failed", bad, "dry_run", *dryRun)
	if bad > 0 {
		os.Exit(1)
	}
}
