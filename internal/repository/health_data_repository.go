package repository

import (
	"context"
	"time"

	"github.com/BrunoGao/release-sub004/internal/model"
	"gorm.io/gorm"
)

type HealthDataRepository struct {
	db *gorm.DB
}

func NewHealthDataRepository(db *gorm.DB) *HealthDataRepository {
	return &HealthDataRepository{db: db}
}

// FindLatestByUser 查找用户最新一条健康读数
func (r *HealthDataRepository) FindLatestByUser(ctx context.Context, userID, tenantID uint64) (*model.LatestHealthReading, error) {
	var row model.HealthData
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Order("timestamp DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &model.LatestHealthReading{
		UserID:      row.UserID,
		DeviceSN:    row.DeviceSN,
		HeartRate:   row.HeartRate,
		BloodOxygen: row.BloodOxygen,
		Temperature: row.Temperature,
		Step:        row.Step,
		Timestamp:   row.Timestamp,
	}, nil
}

// FindLatestByTenant 查找租户内每个用户的最新健康读数
// 预热用：一次分组查询覆盖全部用户，查询次数与用户数无关
func (r *HealthDataRepository) FindLatestByTenant(ctx context.Context, tenantID uint64) ([]model.LatestHealthReading, error) {
	var rows []model.HealthData
	err := r.db.WithContext(ctx).Raw(`
		SELECT h.* FROM health_data h
		JOIN (
			SELECT user_id, MAX(timestamp) AS ts FROM health_data
			WHERE tenant_id = ? GROUP BY user_id
		) latest ON latest.user_id = h.user_id AND latest.ts = h.timestamp
		WHERE h.tenant_id = ?`, tenantID, tenantID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	readings := make([]model.LatestHealthReading, 0, len(rows))
	seen := make(map[uint64]bool, len(rows))
	for _, row := range rows {
		// 同一时间戳多条时取其一
		if seen[row.UserID] {
			continue
		}
		seen[row.UserID] = true
		readings = append(readings, model.LatestHealthReading{
			UserID:      row.UserID,
			DeviceSN:    row.DeviceSN,
			HeartRate:   row.HeartRate,
			BloodOxygen: row.BloodOxygen,
			Temperature: row.Temperature,
			Step:        row.Step,
			Timestamp:   row.Timestamp,
		})
	}
	return readings, nil
}

// SummarizeOrgsByTenant 租户内全部部门的健康汇总
// 定时刷新用：三条分组查询合并成每部门一条汇总，查询次数与部门数无关
func (r *HealthDataRepository) SummarizeOrgsByTenant(ctx context.Context, tenantID uint64) ([]model.OrgHealthSummary, error) {
	dayStart := time.Now().Truncate(24 * time.Hour)
	byOrg := make(map[uint64]*model.OrgHealthSummary)
	ensure := func(orgID uint64) *model.OrgHealthSummary {
		if s, ok := byOrg[orgID]; ok {
			return s
		}
		s := &model.OrgHealthSummary{OrgID: orgID}
		byOrg[orgID] = s
		return s
	}

	var userRows []struct {
		OrgID uint64
		Count int64
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT e.ancestor_id AS org_id, COUNT(DISTINCT uo.user_id) AS count
		FROM org_closure e
		JOIN user_orgs uo ON uo.org_id = e.descendant_id AND uo.tenant_id = e.tenant_id
		WHERE e.tenant_id = ?
		GROUP BY e.ancestor_id`, tenantID).Scan(&userRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range userRows {
		ensure(row.OrgID).UserCount = row.Count
	}

	var aggRows []struct {
		OrgID          uint64
		ReportedCount  int64
		AvgHeartRate   float64
		AvgBloodOxygen float64
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT e.ancestor_id AS org_id,
		       COUNT(DISTINCT h.user_id)        AS reported_count,
		       COALESCE(AVG(h.heart_rate), 0)   AS avg_heart_rate,
		       COALESCE(AVG(h.blood_oxygen), 0) AS avg_blood_oxygen
		FROM health_data h
		JOIN user_orgs uo ON uo.user_id = h.user_id AND uo.tenant_id = h.tenant_id
		JOIN org_closure e ON e.descendant_id = uo.org_id AND e.tenant_id = uo.tenant_id
		WHERE h.tenant_id = ? AND h.timestamp >= ?
		GROUP BY e.ancestor_id`, tenantID, dayStart).Scan(&aggRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range aggRows {
		s := ensure(row.OrgID)
		s.ReportedCount = row.ReportedCount
		s.AvgHeartRate = row.AvgHeartRate
		s.AvgBloodOxygen = row.AvgBloodOxygen
	}

	var alertRows []struct {
		OrgID uint64
		Count int64
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT e.ancestor_id AS org_id, COUNT(*) AS count
		FROM alerts al
		JOIN org_closure e ON e.descendant_id = al.org_id AND e.tenant_id = al.tenant_id
		WHERE al.tenant_id = ? AND al.status = ?
		GROUP BY e.ancestor_id`, tenantID, model.AlertStatusActive).Scan(&alertRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range alertRows {
		ensure(row.OrgID).ActiveAlerts = row.Count
	}

	summaries := make([]model.OrgHealthSummary, 0, len(byOrg))
	for _, s := range byOrg {
		summaries = append(summaries, *s)
	}
	return summaries, nil
}

// SummarizeOrg 汇总部门（含子部门）当日健康概况
func (r *HealthDataRepository) SummarizeOrg(ctx context.Context, orgID, tenantID uint64, userCount int64) (*model.OrgHealthSummary, error) {
	dayStart := time.Now().Truncate(24 * time.Hour)

	var agg struct {
		ReportedCount  int64
		AvgHeartRate   float64
		AvgBloodOxygen float64
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(DISTINCT h.user_id)       AS reported_count,
		       COALESCE(AVG(h.heart_rate), 0)  AS avg_heart_rate,
		       COALESCE(AVG(h.blood_oxygen), 0) AS avg_blood_oxygen
		FROM health_data h
		JOIN user_orgs uo ON uo.user_id = h.user_id AND uo.tenant_id = h.tenant_id
		JOIN org_closure e ON e.descendant_id = uo.org_id AND e.tenant_id = uo.tenant_id
		WHERE e.ancestor_id = ? AND h.tenant_id = ? AND h.timestamp >= ?`,
		orgID, tenantID, dayStart).Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	var activeAlerts int64
	err = r.db.WithContext(ctx).
		Table("alerts AS al").
		Joins("JOIN org_closure e ON e.descendant_id = al.org_id AND e.tenant_id = al.tenant_id").
		Where("e.ancestor_id = ? AND al.tenant_id = ? AND al.status = ?", orgID, tenantID, model.AlertStatusActive).
		Count(&activeAlerts).Error
	if err != nil {
		return nil, err
	}

	return &model.OrgHealthSummary{
		OrgID:          orgID,
		UserCount:      userCount,
		ReportedCount:  agg.ReportedCount,
		AvgHeartRate:   agg.AvgHeartRate,
		AvgBloodOxygen: agg.AvgBloodOxygen,
		ActiveAlerts:   activeAlerts,
	}, nil
}
