package apptype

// Entity represents a node in the knowledge graph
type Entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

// Relation represents a directed relationship between two entities
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

// KnowledgeGraph is the entity/relation pair returned by every read operation
type KnowledgeGraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// EmptyGraph returns a graph with non-nil, zero-length slices so wire
// serialization always sees [] rather than null.
func EmptyGraph() KnowledgeGraph {
	return KnowledgeGraph{Entities: []Entity{}, Relations: []Relation{}}
}

// ObservationAddition targets an entity with candidate observation contents
type ObservationAddition struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

// ObservationAdded reports which contents were actually appended to an entity
type ObservationAdded struct {
	EntityName        string   `json:"entityName"`
	AddedObservations []string `json:"addedObservations"`
}

// ObservationDeletion lists observation strings to remove from an entity
type ObservationDeletion struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}
