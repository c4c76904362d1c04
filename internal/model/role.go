package model

// Category is the licensing position type being applied for. It selects
// which concrete reviewer role within a tier handles the case.
const (
	CategoryArchitect          = "ARCHITECT"
	CategoryStructuralEngineer = "STRUCTURAL_ENGINEER"
	CategoryLicensedEngineer   = "LICENSED_ENGINEER"
	CategoryLicensedSupervisor = "LICENSED_SUPERVISOR"
	CategoryLicensedPlumber    = "LICENSED_PLUMBER"
)

// Tier is the coarse reviewer level a stage belongs to.
const (
	TierJuniorEngineer    = "JUNIOR_ENGINEER"
	TierAssistantEngineer = "ASSISTANT_ENGINEER"
	TierExecutiveEngineer = "EXECUTIVE_ENGINEER"
	TierCityEngineer      = "CITY_ENGINEER"
	TierClerk             = "CLERK"
)

// Fine-grained officer roles: one per {tier x category}, plus the single
// category-independent clerk role.
const (
	RoleJEArchitect          = "JE_ARCHITECT"
	RoleJEStructuralEngineer = "JE_STRUCTURAL_ENGINEER"
	RoleJELicensedEngineer   = "JE_LICENSED_ENGINEER"
	RoleJELicensedSupervisor = "JE_LICENSED_SUPERVISOR"
	RoleJELicensedPlumber    = "JE_LICENSED_PLUMBER"

	RoleAEArchitect          = "AE_ARCHITECT"
	RoleAEStructuralEngineer = "AE_STRUCTURAL_ENGINEER"
	RoleAELicensedEngineer   = "AE_LICENSED_ENGINEER"
	RoleAELicensedSupervisor = "AE_LICENSED_SUPERVISOR"
	RoleAELicensedPlumber    = "AE_LICENSED_PLUMBER"

	RoleEEArchitect          = "EE_ARCHITECT"
	RoleEEStructuralEngineer = "EE_STRUCTURAL_ENGINEER"
	RoleEELicensedEngineer   = "EE_LICENSED_ENGINEER"
	RoleEELicensedSupervisor = "EE_LICENSED_SUPERVISOR"
	RoleEELicensedPlumber    = "EE_LICENSED_PLUMBER"

	RoleCEArchitect          = "CE_ARCHITECT"
	RoleCEStructuralEngineer = "CE_STRUCTURAL_ENGINEER"
	RoleCELicensedEngineer   = "CE_LICENSED_ENGINEER"
	RoleCELicensedSupervisor = "CE_LICENSED_SUPERVISOR"
	RoleCELicensedPlumber    = "CE_LICENSED_PLUMBER"

	RoleClerk = "CLERK"
)

// roleTable maps tier -> category -> concrete reviewer role. The clerk tier
// is category-independent and handled separately in RoleFor.
var roleTable = map[string]map[string]string{
	TierJuniorEngineer: {
		CategoryArchitect:          RoleJEArchitect,
		CategoryStructuralEngineer: RoleJEStructuralEngineer,
		CategoryLicensedEngineer:   RoleJELicensedEngineer,
		CategoryLicensedSupervisor: RoleJELicensedSupervisor,
		CategoryLicensedPlumber:    RoleJELicensedPlumber,
	},
	TierAssistantEngineer: {
		CategoryArchitect:          RoleAEArchitect,
		CategoryStructuralEngineer: RoleAEStructuralEngineer,
		CategoryLicensedEngineer:   RoleAELicensedEngineer,
		CategoryLicensedSupervisor: RoleAELicensedSupervisor,
		CategoryLicensedPlumber:    RoleAELicensedPlumber,
	},
	TierExecutiveEngineer: {
		CategoryArchitect:          RoleEEArchitect,
		CategoryStructuralEngineer: RoleEEStructuralEngineer,
		CategoryLicensedEngineer:   RoleEELicensedEngineer,
		CategoryLicensedSupervisor: RoleEELicensedSupervisor,
		CategoryLicensedPlumber:    RoleEELicensedPlumber,
	},
	TierCityEngineer: {
		CategoryArchitect:          RoleCEArchitect,
		CategoryStructuralEngineer: RoleCEStructuralEngineer,
		CategoryLicensedEngineer:   RoleCELicensedEngineer,
		CategoryLicensedSupervisor: RoleCELicensedSupervisor,
		CategoryLicensedPlumber:    RoleCELicensedPlumber,
	},
}

// RoleFor resolves the concrete officer role that reviews applications of
// the given category at the given tier. This single lookup replaces the
// per-category branch ladders that would otherwise repeat in every service.
func RoleFor(category, tier string) (string, bool) {
	if tier == TierClerk {
		return RoleClerk, true
	}
	byCategory, ok := roleTable[tier]
	if !ok {
		return "", false
	}
	role, ok := byCategory[category]
	return role, ok
}

// TierOf returns the coarse tier a fine-grained role belongs to.
func TierOf(role string) (string, bool) {
	if role == RoleClerk {
		return TierClerk, true
	}
	for tier, byCategory := range roleTable {
		for _, r := range byCategory {
			if r == role {
				return tier, true
			}
		}
	}
	return "", false
}

// ValidCategory reports whether category belongs to the closed set.
func ValidCategory(category string) bool {
	switch category {
	case CategoryArchitect, CategoryStructuralEngineer, CategoryLicensedEngineer,
		CategoryLicensedSupervisor, CategoryLicensedPlumber:
		return true
	}
	return false
}
