package storage

import (
	"context"

	"github.com/estatehub/showings/libs/db"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
)

type PropertyRepository struct {
	db db.Querier
}

func NewPropertyRepository(q db.Querier) *PropertyRepository {
	return &PropertyRepository{db: q}
}

func (r *PropertyRepository) Get(ctx context.Context, id string) (model.Property, error) {
	var p model.Property
	err := r.db.QueryRow(ctx, `
		SELECT id::text, title, COALESCE(address, ''), agent_id::text
		FROM properties
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Address, &p.AgentID)
	if db.IsNotFound(err) {
		return model.Property{}, ErrPropertyNotFound
	}
	if err != nil {
		return model.Property{}, err
	}
	return p, nil
}

// PrimaryImages resolves one representative image per property in a single query:
// the primary image when flagged, otherwise the lowest display order.
// Properties without images are absent from the result.
func (r *PropertyRepository) PrimaryImages(ctx context.Context, propertyIDs []string) (map[string]string, error) {
	images := make(map[string]string, len(propertyIDs))
	if len(propertyIDs) == 0 {
		return images, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (property_id) property_id::text, image_url
		FROM property_images
		WHERE property_id::text = ANY($1)
		ORDER BY property_id, is_primary DESC, display_order ASC
	`, propertyIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, err
		}
		images[id] = url
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return images, nil
}
