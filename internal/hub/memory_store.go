package hub

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]*Device
	events  []Event
	nextID  int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: make(map[string]*Device),
		now:     time.Now,
	}
}

func (s *MemoryStore) CreateDevice(ctx context.Context, device Device) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[device.ID]; exists {
		return nil, ErrDeviceExists
	}

	device.CreatedAt = s.now().UTC()
	device.LastSeenAt = nil
	stored := device
	s.devices[device.ID] = &stored
	return &device, nil
}

func (s *MemoryStore) GetDevice(ctx context.Context, id string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.devices[id]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	device := *d
	return &device, nil
}

func (s *MemoryStore) ListDevices(ctx context.Context) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		result = append(result, *d)
	}
	sortDevices(result)
	return result, nil
}

func (s *MemoryStore) InsertEvent(ctx context.Context, event Event) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.devices[event.DeviceID]
	if !exists {
		return nil, ErrDeviceNotFound
	}

	s.nextID++
	event.ID = s.nextID
	event.ReceivedAt = s.now().UTC()
	s.events = append(s.events, event)

	seen := event.ReceivedAt
	d.LastSeenAt = &seen
	return &event, nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.devices[deviceID]; !exists {
		return nil, ErrDeviceNotFound
	}

	limit = ClampLimit(limit)
	result := make([]Event, 0, min(limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		if s.events[i].DeviceID == deviceID {
			result = append(result, s.events[i])
		}
	}
	return result, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Devices: int64(len(s.devices)),
		Events:  int64(len(s.events)),
	}
	for _, e := range s.events {
		if e.RandomMAC {
			stats.RandomEvents++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func sortDevices(devices []Device) {
	slices.SortFunc(devices, func(a, b Device) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
