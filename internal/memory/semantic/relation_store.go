package semantic

import (
	"context"
	"fmt"

	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"mnemos/internal/database/neo4j"
	"mnemos/internal/models"
)

// RelationStore links facts to the entities they mention. It backs entity
// centric browsing of a user's knowledge; recall itself stays on the vector
// path.
type RelationStore interface {
	LinkEntities(ctx context.Context, fact *models.SemanticFact) error
	FactsForEntity(ctx context.Context, userID, entity string) ([]string, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Neo4jRelationStore implements RelationStore on the entity graph.
type Neo4jRelationStore struct {
	client *neo4j.Neo4jClient
}

// NewNeo4jRelationStore creates a relation store over the given client.
func NewNeo4jRelationStore(client *neo4j.Neo4jClient) *Neo4jRelationStore {
	return &Neo4jRelationStore{client: client}
}

// LinkEntities merges a node per entity and connects the fact to each one.
func (s *Neo4jRelationStore) LinkEntities(ctx context.Context, fact *models.SemanticFact) error {
	if len(fact.Entities) == 0 {
		return nil
	}

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4jdriver.ManagedTransaction) (interface{}, error) {
		for _, ent := range fact.Entities {
			query := `
			MERGE (f:Fact {fact_id: $fact_id, user_id: $user_id})
			ON CREATE SET f.content = $content
			MERGE (e:Entity {name: $entity, user_id: $user_id})
			MERGE (f)-[:MENTIONS]->(e)
			`
			params := map[string]interface{}{
				"fact_id": fact.ID,
				"user_id": fact.UserID,
				"content": fact.Content,
				"entity":  ent,
			}
			if _, err := tx.Run(ctx, query, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to link fact entities: %w", err)
	}
	return nil
}

// FactsForEntity returns the IDs of the user's facts mentioning the entity.
func (s *Neo4jRelationStore) FactsForEntity(ctx context.Context, userID, entity string) ([]string, error) {
	result, err := s.client.ExecuteRead(ctx, func(tx neo4jdriver.ManagedTransaction) (interface{}, error) {
		query := `
		MATCH (f:Fact {user_id: $user_id})-[:MENTIONS]->(e:Entity {name: $entity, user_id: $user_id})
		RETURN f.fact_id AS fact_id
		`
		params := map[string]interface{}{
			"user_id": userID,
			"entity":  entity,
		}
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var ids []string
		for res.Next(ctx) {
			if v, ok := res.Record().Get("fact_id"); ok {
				ids = append(ids, v.(string))
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query entity facts: %w", err)
	}
	return result.([]string), nil
}

// DeleteUser detaches and removes every node of the user.
func (s *Neo4jRelationStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.client.ExecuteWrite(ctx, func(tx neo4jdriver.ManagedTransaction) (interface{}, error) {
		query := `MATCH (n {user_id: $user_id}) DETACH DELETE n`
		return tx.Run(ctx, query, map[string]interface{}{"user_id": userID})
	})
	if err != nil {
		return fmt.Errorf("failed to delete user graph: %w", err)
	}
	return nil
}
