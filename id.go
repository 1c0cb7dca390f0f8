package keeper

import "github.com/xraph/keeper/id"

// ID is the primary identifier type for all Keeper entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
