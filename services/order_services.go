package services

import (
	"log"

	"github.com/kendall-kelly/stockmaster-web/config"
	"github.com/kendall-kelly/stockmaster-web/orders"
	"gorm.io/gorm"
)

// OrderServices bundles everything the order form handlers need
type OrderServices struct {
	Catalog     *orders.Catalog
	Drafts      *DraftStore
	Warehouse   *WarehouseAPI
	Archive     *ArchiveService // nil when archiving is disabled
	Coordinator *orders.Coordinator
}

var orderServicesInstance *OrderServices

// NewOrderServices wires the draft store, warehouse client and archive into a
// submission coordinator. archive may be nil.
func NewOrderServices(db *gorm.DB, warehouse *WarehouseAPI, archive *ArchiveService, cfg *config.Config) *OrderServices {
	catalog := orders.DefaultCatalog()
	drafts := NewDraftStore(db)

	var archiver orders.Archiver
	if archive != nil {
		archiver = archive
	}

	coordinator := orders.NewCoordinator(catalog, drafts, warehouse, archiver, cfg.Location())
	coordinator.OnTransition = func(id string, from, to orders.Phase) {
		if cfg.LogLevel == "debug" {
			log.Printf("draft %s: %s -> %s", id, from, to)
		}
	}

	return &OrderServices{
		Catalog:     catalog,
		Drafts:      drafts,
		Warehouse:   warehouse,
		Archive:     archive,
		Coordinator: coordinator,
	}
}

// InitOrderServices builds the order services from configuration and makes
// them the global instance
func InitOrderServices(cfg *config.Config, db *gorm.DB) (*OrderServices, error) {
	var archive *ArchiveService
	if cfg.ArchiveEnabled() {
		s3Service, err := InitS3Service(cfg)
		if err != nil {
			return nil, err
		}
		archive = NewArchiveService(s3Service)
		log.Printf("Archiving submissions to s3://%s/%s", cfg.AWSS3Bucket, ArchivePrefix)
	}

	warehouse := NewWarehouseAPI(cfg.WarehouseAPIURL, cfg.UpstreamTimeout)
	orderServicesInstance = NewOrderServices(db, warehouse, archive, cfg)
	return orderServicesInstance, nil
}

// GetOrderServices returns the initialized order services
func GetOrderServices() *OrderServices {
	return orderServicesInstance
}

// SetOrderServices sets the order services instance (primarily for testing)
func SetOrderServices(s *OrderServices) {
	orderServicesInstance = s
}
