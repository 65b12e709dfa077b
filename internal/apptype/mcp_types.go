package apptype

// CreateEntitiesArgs represents the arguments for the create_entities tool
type CreateEntitiesArgs struct {
	Entities []Entity `json:"entities" jsonschema:"A list of entities to create. Entities that already exist are ignored."`
}

// CreateEntitiesResult reports the entities that were actually created
type CreateEntitiesResult struct {
	Entities []Entity `json:"entities"`
}

// CreateRelationsArgs represents the arguments for the create_relations tool
type CreateRelationsArgs struct {
	Relations []Relation `json:"relations" jsonschema:"A list of relations to create between entities. Duplicate triples are ignored."`
}

// CreateRelationsResult reports the relations that were actually created
type CreateRelationsResult struct {
	Relations []Relation `json:"relations"`
}

// AddObservationsArgs represents the arguments for the add_observations tool
type AddObservationsArgs struct {
	Observations []ObservationAddition `json:"observations" jsonschema:"Per-entity observation contents to append. Fails if a target entity does not exist."`
}

// AddObservationsResult reports, per entity, which observations were new
type AddObservationsResult struct {
	Results []ObservationAdded `json:"results"`
}

// DeleteEntitiesArgs represents the arguments for the delete_entities tool
type DeleteEntitiesArgs struct {
	EntityNames []string `json:"entityNames" jsonschema:"Names of entities to delete. Missing names are silently skipped."`
}

// DeleteObservationsArgs represents the arguments for the delete_observations tool
type DeleteObservationsArgs struct {
	Deletions []ObservationDeletion `json:"deletions" jsonschema:"Per-entity observation strings to remove. Missing entities or observations are silently skipped."`
}

// DeleteRelationsArgs represents the arguments for the delete_relations tool
type DeleteRelationsArgs struct {
	Relations []Relation `json:"relations" jsonschema:"Relations to delete. Missing triples are silently skipped."`
}

// ReadGraphArgs represents the arguments for the read_graph tool
type ReadGraphArgs struct{}

// SearchNodesArgs represents the arguments for the search_nodes tool
type SearchNodesArgs struct {
	Query string `json:"query" jsonschema:"The search query matched against entity names, types, and observation content."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results for similarity search (default 5)."`
}

// OpenNodesArgs represents the arguments for the open_nodes tool
type OpenNodesArgs struct {
	Names []string `json:"names" jsonschema:"Entity names to open. Missing names are silently dropped."`
}

// HealthArgs represents the arguments for the health tool
type HealthArgs struct{}

// HealthResult reports server identity and the active search configuration
type HealthResult struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Revision      string `json:"revision"`
	BuildDate     string `json:"buildDate"`
	SearchMode    string `json:"searchMode"`
	EmbeddingDims int    `json:"embeddingDims"`
}
