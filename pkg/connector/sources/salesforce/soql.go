package salesforce

import (
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/models"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
)

const (
	standardProjection = "FIELDS(STANDARD)"
	deletedFilter      = "IsDeleted=False"
	modifiedField      = "LastModifiedDate"
)

// BuildQuery renders the extraction statement for an object.
//
// Custom objects project every described field in describe order; standard
// objects project FIELDS(STANDARD). Deleted rows are always excluded and the
// optional date range bounds LastModifiedDate inclusively:
//
//	SELECT <projection> FROM <Object> WHERE IsDeleted=False[ AND LastModifiedDate>=X][ AND LastModifiedDate<=Y]
func BuildQuery(desc *models.ObjectDescriptor, dates models.DateRange) (models.Query, error) {
	if desc == nil || desc.Name == "" {
		return "", errors.New(errors.ErrorTypeValidation, "object name is required")
	}

	custom := models.IsCustomObject(desc.Name)
	if custom && len(desc.Fields) == 0 {
		return "", errors.New(errors.ErrorTypeValidation, "custom object has no fields to select").
			WithDetail("object", desc.Name)
	}

	estimated := 64 + len(desc.Name)
	if custom {
		for _, f := range desc.Fields {
			estimated += len(f.Name) + 2
		}
	}

	qb := stringpool.NewQueryBuilder(estimated)
	defer qb.Close()

	qb.WriteQuery("SELECT").WriteSpace()
	if custom {
		qb.WriteList(desc.FieldNames(), ", ")
	} else {
		qb.WriteQuery(standardProjection)
	}
	qb.WriteSpace().WriteQuery("FROM").WriteSpace().WriteQuery(desc.Name)
	qb.WriteSpace().WriteQuery("WHERE").WriteSpace().WriteQuery(deletedFilter)

	if lower := dates.LowerBound(); lower != "" {
		qb.WriteSpace().WriteQuery("AND").WriteSpace().
			WriteQuery(modifiedField).WriteQuery(">=").WriteQuery(lower)
	}
	if upper := dates.UpperBound(); upper != "" {
		qb.WriteSpace().WriteQuery("AND").WriteSpace().
			WriteQuery(modifiedField).WriteQuery("<=").WriteQuery(upper)
	}

	return models.Query(qb.String()), nil
}
