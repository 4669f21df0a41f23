package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Dimension is a lookup table referenced by postings. Rows are created on
// first reference and reused by label afterwards.
type Dimension int

const (
	DimCompany Dimension = iota
	DimEducationLevel
	DimExperienceLevel
	DimLocation
	DimSector
	DimEmploymentType
)

type (
	dimensionTable struct {
		table  string
		column string
	}

	// Junction links postings to one dimension.
	Junction struct {
		table  string
		column string
	}
)

var dimensionTables = map[Dimension]dimensionTable{
	DimCompany:         {"companies", "name"},
	DimEducationLevel:  {"education_levels", "level"},
	DimExperienceLevel: {"experience_levels", "level"},
	DimLocation:        {"locations", "name"},
	DimSector:          {"sectors", "name"},
	DimEmploymentType:  {"employment_types", "name"},
}

var (
	JunctionExperienceLevels = Junction{"posting_experience_levels", "experience_level_id"}
	JunctionLocations        = Junction{"posting_locations", "location_id"}
	JunctionSectors          = Junction{"posting_sectors", "sector_id"}
	JunctionEmploymentTypes  = Junction{"posting_employment_types", "employment_type_id"}

	junctions = []Junction{
		JunctionExperienceLevels,
		JunctionLocations,
		JunctionSectors,
		JunctionEmploymentTypes,
	}
)

func (d Dimension) String() string {
	if t, ok := dimensionTables[d]; ok {
		return t.table
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// ResolveID returns the id of label in dim, inserting it if absent. The
// no-op update makes RETURNING yield the existing row on conflict.
func ResolveID(ctx context.Context, tx *gorm.DB, dim Dimension, label string) (uint64, error) {
	t, ok := dimensionTables[dim]
	if !ok {
		return 0, errors.Errorf("unknown dimension %d", int(dim))
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, validationError("empty " + t.table + " label")
	}

	sql, args, err := squirrel.
		Insert(t.table).Columns(t.column).Values(label).
		Suffix(fmt.Sprintf("ON CONFLICT (%[1]s) DO UPDATE SET %[1]s = EXCLUDED.%[1]s RETURNING id", t.column)).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build sql")
	}

	var id uint64
	if err := tx.WithContext(ctx).Raw(sql, args...).Row().Scan(&id); err != nil {
		return 0, errors.Wrapf(err, "resolve %s %q", t.table, label)
	}
	return id, nil
}

// ResolveIDs resolves every label, skipping repeats.
func ResolveIDs(ctx context.Context, tx *gorm.DB, dim Dimension, labels []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if _, ok := seen[label]; ok || label == "" {
			continue
		}
		seen[label] = struct{}{}

		id, err := ResolveID(ctx, tx, dim, label)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Link writes one junction row per id. Existing links are left alone.
func Link(ctx context.Context, tx *gorm.DB, j Junction, postingID uint64, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	q := squirrel.Insert(j.table).Columns("posting_id", j.column)
	for _, id := range ids {
		q = q.Values(postingID, id)
	}
	sql, args, err := q.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return errors.Wrap(err, "build sql")
	}
	if res := tx.WithContext(ctx).Exec(sql, args...); res.Error != nil {
		return errors.Wrapf(res.Error, "link %s", j.table)
	}
	return nil
}

// Unlink removes every link of the posting in j.
func Unlink(ctx context.Context, tx *gorm.DB, j Junction, postingID uint64) error {
	sql, args, err := squirrel.Delete(j.table).Where(squirrel.Eq{"posting_id": postingID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "build sql")
	}
	if res := tx.WithContext(ctx).Exec(sql, args...); res.Error != nil {
		return errors.Wrapf(res.Error, "unlink %s", j.table)
	}
	return nil
}

// Relink replaces the posting's links in j with labels resolved in dim.
func Relink(ctx context.Context, tx *gorm.DB, dim Dimension, j Junction, postingID uint64, labels []string) error {
	if err := Unlink(ctx, tx, j, postingID); err != nil {
		return err
	}
	ids, err := ResolveIDs(ctx, tx, dim, labels)
	if err != nil {
		return err
	}
	return Link(ctx, tx, j, postingID, ids)
}
