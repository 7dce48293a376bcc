package reference

import (
	"context"

	"meatengine/internal/models"

	"gorm.io/gorm"
)

// GormTargets reads StoreMeatTarget and StoreProxy rows.
type GormTargets struct {
	DB *gorm.DB
}

func (g GormTargets) LoadTargets(ctx context.Context) (map[uint]map[string]Target, map[uint]uint, error) {
	var rows []models.StoreMeatTarget
	if err := g.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	targets := make(map[uint]map[string]Target)
	for _, r := range rows {
		if targets[r.StoreID] == nil {
			targets[r.StoreID] = make(map[string]Target)
		}
		targets[r.StoreID][r.Protein] = Target{
			WeightPerGuest: r.WeightTargetPerGuest,
			CostPerGuest:   r.CostTargetPerGuest,
		}
	}

	var proxies []models.StoreProxy
	if err := g.DB.WithContext(ctx).Find(&proxies).Error; err != nil {
		return nil, nil, err
	}
	proxyMap := make(map[uint]uint, len(proxies))
	for _, p := range proxies {
		proxyMap[p.StoreID] = p.ProxyStoreID
	}
	return targets, proxyMap, nil
}
