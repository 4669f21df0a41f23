package service

import "github.com/Masterminds/squirrel"

const (
	locationsColumn = "ARRAY(SELECT l.name FROM posting_locations pl JOIN locations l ON l.id = pl.location_id " +
		"WHERE pl.posting_id = p.id ORDER BY l.name) AS locations"
	sectorsColumn = "ARRAY(SELECT s.name FROM posting_sectors ps JOIN sectors s ON s.id = ps.sector_id " +
		"WHERE ps.posting_id = p.id ORDER BY s.name) AS sectors"
	employmentTypesColumn = "ARRAY(SELECT et.name FROM posting_employment_types pet JOIN employment_types et ON et.id = pet.employment_type_id " +
		"WHERE pet.posting_id = p.id ORDER BY et.name) AS employment_types"
	experienceLevelsColumn = "ARRAY(SELECT x.level FROM posting_experience_levels pel JOIN experience_levels x ON x.id = pel.experience_level_id " +
		"WHERE pel.posting_id = p.id ORDER BY x.level) AS experience_levels"
)

var summaryColumns = []string{
	"p.id",
	"p.title",
	"p.link",
	"c.name AS company",
	"p.salary",
	"p.deadline",
	"p.last_modified",
	"p.views",
	"p.created_at",
	locationsColumn,
	sectorsColumn,
	employmentTypesColumn,
}

func selectSummaries() squirrel.SelectBuilder {
	return squirrel.
		Select(summaryColumns...).
		From("postings p").
		Join("companies c ON c.id = p.company_id")
}

func selectDetail() squirrel.SelectBuilder {
	return selectSummaries().
		Columns(
			"p.user_id",
			"p.updated_at",
			"el.level AS education_level",
			"pet_one.name AS employment_type",
			experienceLevelsColumn,
		).
		LeftJoin("education_levels el ON el.id = p.education_level_id").
		LeftJoin("employment_types pet_one ON pet_one.id = p.employment_type_id")
}
