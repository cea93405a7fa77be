package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Permission represents a staff action that can be performed.
type Permission string

const (
	PermissionWarnUser     Permission = "warn_user"
	PermissionBanUser      Permission = "ban_user"
	PermissionUnbanUser    Permission = "unban_user"
	PermissionBroadcast    Permission = "broadcast"
	PermissionDeleteReview Permission = "delete_review"
	PermissionViewStats    Permission = "view_stats"
)

// RoleName represents the name of a staff role.
type RoleName string

const (
	RoleOwner     RoleName = "owner"
	RoleModerator RoleName = "moderator"
)

// Role defines a set of permissions for staff members.
type Role struct {
	Name        RoleName     `json:"-"` // Set from map key during loading
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission checks if this role has the given permission.
func (r *Role) HasPermission(perm Permission) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// StaffUser represents a platform account with staff privileges.
type StaffUser struct {
	ID    int64    `json:"id"`
	Alias string   `json:"alias,omitempty"`
	Role  RoleName `json:"role"`
	Note  string   `json:"note,omitempty"`
}

// AccessConfig represents the staff configuration loaded from JSON.
type AccessConfig struct {
	Roles map[RoleName]*Role `json:"roles"`
	Users []StaffUser        `json:"users"`
}

// Validate checks that the config is valid.
func (c *AccessConfig) Validate() error {
	if c.Roles == nil {
		c.Roles = make(map[RoleName]*Role)
	}
	for _, user := range c.Users {
		if _, ok := c.Roles[user.Role]; !ok {
			return fmt.Errorf("staff config: user %d references unknown role: %s", user.ID, user.Role)
		}
	}
	for name, role := range c.Roles {
		role.Name = name
	}
	return nil
}

// Access resolves staff identity to roles and permissions. Commands
// from accounts outside the config are silently ignored by callers, so
// the existence of moderation commands never leaks.
type Access struct {
	mu         sync.RWMutex
	config     *AccessConfig
	configPath string

	// Quick lookup maps built from config
	userRoles map[int64]*Role
	userInfos map[int64]*StaffUser
}

// NewAccess creates a staff access service. If configPath is empty, the
// service is in "disabled" mode where all permission checks return
// false.
func NewAccess(configPath string) (*Access, error) {
	a := &Access{
		configPath: configPath,
		userRoles:  make(map[int64]*Role),
		userInfos:  make(map[int64]*StaffUser),
	}

	if configPath == "" {
		log.Info().Msg("moderation: no staff config path provided, access disabled")
		return a, nil
	}

	if err := a.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load staff config: %w", err)
	}
	return a, nil
}

func (a *Access) loadConfig() error {
	data, err := os.ReadFile(a.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", a.configPath).Msg("moderation: staff config not found, access disabled")
			return nil
		}
		return fmt.Errorf("failed to read staff config: %w", err)
	}

	var config AccessConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse staff config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.config = &config
	a.rebuildLookupMaps()

	log.Info().
		Int("roles", len(config.Roles)).
		Int("users", len(config.Users)).
		Str("path", a.configPath).
		Msg("moderation: staff config loaded")
	return nil
}

// rebuildLookupMaps rebuilds the quick lookup maps from config.
// Caller must hold the write lock.
func (a *Access) rebuildLookupMaps() {
	a.userRoles = make(map[int64]*Role)
	a.userInfos = make(map[int64]*StaffUser)

	if a.config == nil {
		return
	}
	for i := range a.config.Users {
		user := &a.config.Users[i]
		if role, ok := a.config.Roles[user.Role]; ok {
			a.userRoles[user.ID] = role
			a.userInfos[user.ID] = user
		}
	}
}

// Reload reloads the configuration from disk.
func (a *Access) Reload() error {
	if a.configPath == "" {
		return nil
	}
	return a.loadConfig()
}

// IsEnabled returns true if staff access is configured.
func (a *Access) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config != nil && len(a.config.Users) > 0
}

// IsStaff returns true if the given account has any staff role.
func (a *Access) IsStaff(id int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.userRoles[id]
	return ok
}

// IsOwner returns true if the given account has the owner role.
func (a *Access) IsOwner(id int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	role, ok := a.userRoles[id]
	return ok && role.Name == RoleOwner
}

// HasPermission returns true if the given account has the permission.
func (a *Access) HasPermission(id int64, perm Permission) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	role, ok := a.userRoles[id]
	if !ok {
		return false
	}
	return role.HasPermission(perm)
}

// GetStaffUser returns the staff record for the given account, if any.
func (a *Access) GetStaffUser(id int64) (*StaffUser, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	user, ok := a.userInfos[id]
	if !ok {
		return nil, false
	}
	userCopy := *user
	return &userCopy, true
}
