package fetch

import (
	"sync"
	"time"
)

// profileEntry stores the preferred profile for a domain with a TTL.
type profileEntry struct {
	profileName string
	expiresAt   time.Time
}

// ProfileMemory remembers which impersonation profile last worked for each
// domain, so repeat scans skip straight to a fingerprint the site accepts.
// Entries expire after the configured TTL and are cleaned up periodically.
type ProfileMemory struct {
	store sync.Map // domain (string) -> *profileEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewProfileMemory creates a ProfileMemory with the given TTL and starts
// a background goroutine that prunes expired entries every hour.
func NewProfileMemory(ttl time.Duration) *ProfileMemory {
	pm := &ProfileMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go pm.cleanupLoop()
	return pm
}

// Get returns the remembered profile name for a domain, or "" if not found / expired.
func (pm *ProfileMemory) Get(domain string) string {
	val, ok := pm.store.Load(domain)
	if !ok {
		return ""
	}
	entry := val.(*profileEntry)
	if time.Now().After(entry.expiresAt) {
		pm.store.Delete(domain)
		return ""
	}
	return entry.profileName
}

// Set records which profile succeeded for a domain.
func (pm *ProfileMemory) Set(domain, profileName string) {
	pm.store.Store(domain, &profileEntry{
		profileName: profileName,
		expiresAt:   time.Now().Add(pm.ttl),
	})
}

// Delete removes the memory for a domain (e.g. after the remembered profile
// gets blocked).
func (pm *ProfileMemory) Delete(domain string) {
	pm.store.Delete(domain)
}

// Stop terminates the background cleanup goroutine.
func (pm *ProfileMemory) Stop() {
	close(pm.done)
}

// cleanupLoop runs every hour, deleting expired entries.
func (pm *ProfileMemory) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-pm.done:
			return
		case <-ticker.C:
			now := time.Now()
			pm.store.Range(func(key, value any) bool {
				entry := value.(*profileEntry)
				if now.After(entry.expiresAt) {
					pm.store.Delete(key)
				}
				return true
			})
		}
	}
}
