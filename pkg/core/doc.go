// Package core defines the shared language of the leapboard system.
//
// This package contains:
//   - Domain entities (Dashboard, DashboardData, LayoutEntry)
//   - The placeholder-slot policy applied to layouts
//   - Service interfaces (Store)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
