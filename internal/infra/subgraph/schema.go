package subgraph

// Schema adapts the client to one indexer schema version. The deployed
// subgraphs differ only in field naming (legacy event-shaped vs denormalized
// aggregate-shaped); a schema value parameterizes one shared pipeline
// instead of duplicating it per variant.
type Schema struct {
	Name           string
	TxHashField    string
	TimestampField string
}

var (
	// Studio is the legacy event-shaped schema from the hosted studio
	// deployment.
	Studio = Schema{
		Name:           "studio",
		TxHashField:    "transactionHash",
		TimestampField: "blockTimestamp",
	}

	// Denormalized is the aggregate-shaped schema with short field names.
	Denormalized = Schema{
		Name:           "denormalized",
		TxHashField:    "txHash",
		TimestampField: "timestamp",
	}
)

// SchemaByName resolves a configured schema name, defaulting to Studio.
func SchemaByName(name string) Schema {
	switch name {
	case Denormalized.Name:
		return Denormalized
	default:
		return Studio
	}
}
