// Package app provides the application composition layer for the market.
//
// # Architecture Role
//
// The app package sits above the domain and service packages and composes
// them into a running application. It is NOT a business logic layer -
// business logic belongs in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Main application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── asset/          # Assets, price history, valuations
//	│   ├── portfolio/      # Per-user holdings
//	│   └── schedule/       # Per-asset revaluation schedule records
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces and sentinel errors
//	│   ├── memory/         # In-memory implementation for testing
//	│   ├── badgerstore/    # Badger KV implementation for production
//	│   ├── redisindex/     # Redis set-backed index store
//	│   └── postgres/       # PostgreSQL market-history sink
//	├── services/           # Business logic
//	│   ├── issuance/       # Asset creation and founder grants
//	│   ├── valuation/      # Price algorithm and revaluation engine
//	│   ├── ranking/        # Trending queries
//	│   └── engagement/     # External popularity signal integration
//	├── scheduler/          # Single-shot job facility and sweeper
//	├── httpapi/            # HTTP API handlers and routing
//	├── system/             # Lifecycle management
//	└── metrics/            # Application metrics
package app
