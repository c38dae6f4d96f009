// 包 store：点位数据访问层；每个城市一张分区表，写入后通过 pg_notify 广播变更
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pontos-api/internal/cities"
	"pontos-api/internal/logger"
	"pontos-api/internal/points"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound：目标分区内不存在该 id
var ErrNotFound = errors.New("point not found")

// DefaultLimit：列表查询默认上限
const DefaultLimit = 500

// NotifyChannel：写入后广播的通知通道，载荷为城市 slug
const NotifyChannel = "points_changed"

// Store: 数据库访问入口，持有连接池并提供分区内增删改查
// 约束：分区之间无跨表事务；网络/库错误原样上抛，读路径重试策略在 sync 层
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const pointCols = "id, type, name, address, complement, hours, donation_kinds, contact_name, contact_phone, capacity, lat, lng, city_slug, version, created_at, updated_at"

func scanPoint(rows *sql.Rows) (points.Point, error) {
	var p points.Point
	var kinds pq.StringArray
	var capacity sql.NullInt64
	err := rows.Scan(&p.ID, &p.Type, &p.Name, &p.Address, &p.Complement, &p.Hours,
		&kinds, &p.ContactName, &p.ContactPhone, &capacity, &p.Lat, &p.Lng,
		&p.CitySlug, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.DonationKinds = []string(kinds)
	if capacity.Valid {
		n := int(capacity.Int64)
		p.Capacity = &n
	}
	return p, nil
}

// List: 按创建时间倒序读取分区点位，上限 max（<=0 回退默认 500）
func (s *Store) List(ctx context.Context, city cities.City, max int) ([]points.Point, error) {
	if max <= 0 {
		max = DefaultLimit
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1", pointCols, city.Partition)
	rows, err := s.db.QueryContext(ctx, q, max)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]points.Point, 0, 16)
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create: 写入新点位；服务端分配 id 与创建时间，version 固定为 1
func (s *Store) Create(ctx context.Context, city cities.City, p points.Point) (string, error) {
	id := uuid.NewString()
	q := fmt.Sprintf(`INSERT INTO %s
		(id, type, name, address, complement, hours, donation_kinds, contact_name, contact_phone, capacity, lat, lng, city_slug, version)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)`, city.Partition)
	var capacity sql.NullInt64
	if p.Capacity != nil {
		capacity = sql.NullInt64{Int64: int64(*p.Capacity), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, q, id, p.Type, p.Name, p.Address, p.Complement, p.Hours,
		pq.Array(p.DonationKinds), p.ContactName, p.ContactPhone, capacity, p.Lat, p.Lng, city.Slug)
	if err != nil {
		logger.L().Error("store_create_error", "city", city.Slug, "err", err)
		return "", err
	}
	s.notify(ctx, city.Slug)
	logger.L().Info("point_created", "city", city.Slug, "id", id, "type", p.Type)
	return id, nil
}

// Update: 整体覆盖点位字段并将 version 严格 +1
// 约束：不以 version 作为并发前置条件，后写覆盖先写
func (s *Store) Update(ctx context.Context, city cities.City, id string, p points.Point) error {
	q := fmt.Sprintf(`UPDATE %s SET
		type=$2, name=$3, address=$4, complement=$5, hours=$6, donation_kinds=$7,
		contact_name=$8, contact_phone=$9, capacity=$10, lat=$11, lng=$12,
		version=version+1, updated_at=now()
		WHERE id=$1`, city.Partition)
	var capacity sql.NullInt64
	if p.Capacity != nil {
		capacity = sql.NullInt64{Int64: int64(*p.Capacity), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, q, id, p.Type, p.Name, p.Address, p.Complement, p.Hours,
		pq.Array(p.DonationKinds), p.ContactName, p.ContactPhone, capacity, p.Lat, p.Lng)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	s.notify(ctx, city.Slug)
	logger.L().Info("point_updated", "city", city.Slug, "id", id)
	return nil
}

// Delete: 硬删除，不可恢复
func (s *Store) Delete(ctx context.Context, city cities.City, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id=$1", city.Partition)
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	s.notify(ctx, city.Slug)
	logger.L().Info("point_deleted", "city", city.Slug, "id", id)
	return nil
}

// CountByType: 分区内按类型统计（/stats 用）
func (s *Store) CountByType(ctx context.Context, city cities.City) (total, collection, shelter int, err error) {
	q := fmt.Sprintf(`SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE type='collection'),
		COUNT(*) FILTER (WHERE type='shelter')
		FROM %s`, city.Partition)
	err = s.db.QueryRowContext(ctx, q).Scan(&total, &collection, &shelter)
	return
}

// notify: 写入成功后广播分区变更；通知失败不影响主流程，订阅端有超时兜底
func (s *Store) notify(ctx context.Context, slug string) {
	if _, err := s.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, slug); err != nil {
		logger.L().Error("notify_error", "city", slug, "err", err)
	}
}
