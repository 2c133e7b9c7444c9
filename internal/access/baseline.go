package access

import "github.com/dmitrijs2005/estatekeeper/internal/server/models"

// Baseline maps a delegate role to the implicit level it holds on each
// document type. Types absent for a role grant nothing.
type Baseline map[models.DelegateRole]map[models.DocumentType]models.AccessLevel

// DefaultBaseline is the role permission table.
var DefaultBaseline = Baseline{
	models.RoleExecutor: {
		models.DocumentTypeLegal:     models.AccessRead,
		models.DocumentTypeFinancial: models.AccessRead,
		models.DocumentTypeInsurance: models.AccessRead,
		models.DocumentTypeTax:       models.AccessRead,
		models.DocumentTypePersonal:  models.AccessRead,
	},
	models.RoleHealthcareProxy: {
		models.DocumentTypeMedical: models.AccessRead,
	},
	models.RoleFinancialAdvisor: {
		models.DocumentTypeFinancial: models.AccessRead,
		models.DocumentTypeTax:       models.AccessRead,
		models.DocumentTypeInsurance: models.AccessRead,
	},
	models.RoleLegalAdvisor: {
		models.DocumentTypeLegal: models.AccessRead,
	},
}

// Level returns the implicit level of role on documents of type t.
func (b Baseline) Level(role models.DelegateRole, t models.DocumentType) models.AccessLevel {
	return b[role][t]
}
