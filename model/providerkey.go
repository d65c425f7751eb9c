package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ProviderKey is a customer-supplied upstream credential for one provider.
type ProviderKey struct {
	Id             string  `json:"id" gorm:"primaryKey"`
	OrganizationId string  `json:"organization_id" gorm:"index:idx_org_provider,priority:1"`
	Provider       string  `json:"provider" gorm:"index:idx_org_provider,priority:2"`
	Token          string  `json:"token"`
	BaseUrl        *string `json:"base_url"`
	Status         string  `json:"status" gorm:"default:'active'"`
	CreatedAt      int64   `json:"created_at" gorm:"bigint"`
	UpdatedAt      int64   `json:"updated_at" gorm:"bigint;autoUpdateTime:milli"`
}

// CustomProvider is a user-registered OpenAI-compatible endpoint, addressed
// as <name>/<model>.
type CustomProvider struct {
	Id             string `json:"id" gorm:"primaryKey"`
	OrganizationId string `json:"organization_id" gorm:"index:idx_org_name,priority:1"`
	Name           string `json:"name" gorm:"index:idx_org_name,priority:2"`
	BaseUrl        string `json:"base_url"`
	Token          string `json:"token"`
	Status         string `json:"status" gorm:"default:'active'"`
	CreatedAt      int64  `json:"created_at" gorm:"bigint"`
}

// GetProviderKey fetches the active key an organization holds for a provider.
func GetProviderKey(orgId, providerId string) (*ProviderKey, error) {
	var key ProviderKey
	err := DB.Where("organization_id = ? AND provider = ? AND status = ?",
		orgId, providerId, KeyStatusActive).First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get provider key for %s/%s", orgId, providerId)
	}
	return &key, nil
}

// HasProviderKey reports whether the organization holds an active key.
func HasProviderKey(orgId, providerId string) (bool, error) {
	key, err := GetProviderKey(orgId, providerId)
	return key != nil, err
}

// GetCustomProvider resolves a custom provider by organization-scoped name.
func GetCustomProvider(orgId, name string) (*CustomProvider, error) {
	var cp CustomProvider
	err := DB.Where("organization_id = ? AND name = ? AND status = ?",
		orgId, name, KeyStatusActive).First(&cp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get custom provider %s/%s", orgId, name)
	}
	return &cp, nil
}
