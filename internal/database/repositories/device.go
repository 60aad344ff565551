package repositories

import (
	"errors"
	"sync"

	"finwatch/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// UpsertResult reports what an upsert did to the stored record
type UpsertResult int

const (
	UpsertInserted UpsertResult = iota
	UpsertUpdated
	UpsertUnchanged
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// DeviceRepository handles device inventory records keyed by hostname
type DeviceRepository interface {
	Upsert(device *models.Device) (UpsertResult, error)
	FindByHostname(hostname string) (*models.Device, error)
	FindByIP(ip string) (*models.Device, error)
	FindAll(limit int, offset int, deviceType string) ([]*models.Device, error)
	Count() (int64, error)
}

type deviceRepo struct {
	db     *gorm.DB
	logger *pterm.Logger

	// Per-hostname locks so concurrent upserts for the same hostname
	// cannot interleave the read-modify-write
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *gorm.DB, logger *pterm.Logger) DeviceRepository {
	return &deviceRepo{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (r *deviceRepo) hostnameLock(hostname string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.locks[hostname]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[hostname] = lock
	}
	return lock
}

// Upsert inserts the device if its hostname is unknown, otherwise fills only
// blank fields on the existing record. A previously recorded non-blank value
// is never overwritten, so later low-quality rows cannot clobber earlier data.
func (r *deviceRepo) Upsert(device *models.Device) (UpsertResult, error) {
	lock := r.hostnameLock(device.Hostname)
	lock.Lock()
	defer lock.Unlock()

	var existing models.Device
	err := r.db.Where("hostname = ?", device.Hostname).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(device).Error; err != nil {
			r.logger.WithCaller().Error("Failed to insert device",
				r.logger.Args("hostname", device.Hostname, "error", err))
			return UpsertUnchanged, err
		}
		r.logger.Trace("Inserted device", r.logger.Args("hostname", device.Hostname))
		return UpsertInserted, nil
	}
	if err != nil {
		r.logger.WithCaller().Error("Failed to look up device",
			r.logger.Args("hostname", device.Hostname, "error", err))
		return UpsertUnchanged, err
	}

	changed := false
	if existing.IPAddress == "" && device.IPAddress != "" {
		existing.IPAddress = device.IPAddress
		changed = true
	}
	if (existing.DeviceType == "" || existing.DeviceType == models.DeviceTypeUnknown) &&
		device.DeviceType != "" && device.DeviceType != models.DeviceTypeUnknown {
		existing.DeviceType = device.DeviceType
		changed = true
	}
	if existing.OS == "" && device.OS != "" {
		existing.OS = device.OS
		changed = true
	}
	if existing.Notes == "" && device.Notes != "" {
		existing.Notes = device.Notes
		changed = true
	}
	if existing.Status == "" && device.Status != "" {
		existing.Status = device.Status
		changed = true
	}

	if !changed {
		r.logger.Trace("Device unchanged", r.logger.Args("hostname", device.Hostname))
		return UpsertUnchanged, nil
	}

	if err := r.db.Save(&existing).Error; err != nil {
		r.logger.WithCaller().Error("Failed to update device",
			r.logger.Args("hostname", device.Hostname, "error", err))
		return UpsertUnchanged, err
	}

	r.logger.Trace("Updated device (filled blank fields)",
		r.logger.Args("hostname", device.Hostname))
	return UpsertUpdated, nil
}

// FindByHostname retrieves a device by its natural key
func (r *deviceRepo) FindByHostname(hostname string) (*models.Device, error) {
	var device models.Device
	if err := r.db.Where("hostname = ?", hostname).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// FindByIP retrieves the first device matching an IP address
// Best-effort correlation only: source data is noisy and no referential
// constraint links events to devices
func (r *deviceRepo) FindByIP(ip string) (*models.Device, error) {
	var device models.Device
	if err := r.db.Where("ip_address = ?", ip).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// FindAll retrieves devices with pagination and an optional type filter
func (r *deviceRepo) FindAll(limit int, offset int, deviceType string) ([]*models.Device, error) {
	var devices []*models.Device
	query := r.db.Order("hostname ASC")

	if deviceType != "" {
		query = query.Where("device_type = ?", deviceType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&devices).Error; err != nil {
		r.logger.WithCaller().Error("Failed to find devices", r.logger.Args("error", err))
		return nil, err
	}

	r.logger.Trace("Found devices", r.logger.Args("count", len(devices), "type_filter", deviceType))
	return devices, nil
}

// Count returns the total number of devices
func (r *deviceRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Device{}).Count(&count).Error
	return count, err
}
