// Package registry holds the static catalog of supported inventory actions.
// The catalog is loaded once at process start and read-only afterwards.
// Keywords and examples exist to brief the external classifier and extractor
// inside prompts; the fallback parser is the only local consumer of them.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Parameter types supported by action schemas.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Action categories.
const (
	CategoryStock     = "stock"
	CategorySearch    = "search"
	CategoryCatalogue = "catalogue"
	CategoryJobs      = "jobs"
	CategoryCustomers = "customers"
	CategoryReporting = "reporting"
)

// ParameterDefinition describes one parameter of an action schema.
type ParameterDefinition struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
}

// ActionDefinition is the canonical definition of one inventory action.
type ActionDefinition struct {
	Name        string                `json:"name"`
	Category    string                `json:"category"`
	Description string                `json:"description"`
	Keywords    []string              `json:"keywords"`
	Parameters  []ParameterDefinition `json:"parameters"`
	Examples    []string              `json:"examples,omitempty"`
}

// RequiredParameters returns the names of all required parameters in schema order.
func (a *ActionDefinition) RequiredParameters() []string {
	var required []string
	for _, p := range a.Parameters {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}

// actions is the static catalog, keyed by canonical action name.
var actions = map[string]*ActionDefinition{}

// aliases maps deprecated or synonym action names to canonical names.
// Lookup is case-insensitive; many aliases may target one action.
var aliases = map[string]string{
	"RECEIVE_STOCK":     "ADD_STOCK",
	"ADJUST_STOCK":      "ADD_STOCK",
	"PUT_STOCK":         "ADD_STOCK",
	"REMOVE_STOCK":      "USE_STOCK",
	"TAKE_STOCK":        "USE_STOCK",
	"CONSUME_STOCK":     "USE_STOCK",
	"TRANSFER_STOCK":    "MOVE_STOCK",
	"RELOCATE_STOCK":    "MOVE_STOCK",
	"STOCKTAKE":         "COUNT_STOCK",
	"STOCK_COUNT":       "COUNT_STOCK",
	"CHECK_STOCK":       "QUERY_INVENTORY",
	"FIND_STOCK":        "SEARCH_STOCK",
	"SEARCH_INVENTORY":  "SEARCH_STOCK",
	"SEARCH_CATALOG":    "SEARCH_CATALOGUE",
	"FIND_PART":         "SEARCH_CATALOGUE",
	"SEARCH_PARTS":      "SEARCH_CATALOGUE",
	"NEW_PART":          "CREATE_CATALOGUE_ITEM",
	"CREATE_PART":       "CREATE_CATALOGUE_ITEM",
	"NEW_PART_WITH_STOCK": "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK",
	"ALLOCATE_STOCK":    "ASSIGN_TO_JOB",
	"BOOK_TO_JOB":       "ASSIGN_TO_JOB",
	"NEW_JOB":           "CREATE_JOB",
	"NEW_CUSTOMER":      "CREATE_CUSTOMER",
	"REORDER_REPORT":    "LOW_STOCK_REPORT",
}

func register(defs ...*ActionDefinition) {
	for _, def := range defs {
		actions[def.Name] = def
	}
}

func init() {
	register(
		&ActionDefinition{
			Name:        "ADD_STOCK",
			Category:    CategoryStock,
			Description: "Add received or adjusted quantity of an item to a stock location",
			Keywords:    []string{"add", "put", "receive", "received", "got", "delivered", "arrived"},
			Parameters: []ParameterDefinition{
				{Name: "partNumber", Type: TypeString, Required: true, Description: "Item or part identifier", Examples: []string{"m10 nuts", "BRG-6204"}},
				{Name: "quantity", Type: TypeNumber, Required: true, Description: "Quantity to add"},
				{Name: "location", Type: TypeString, Required: true, Description: "Stock location", Examples: []string{"rack 1 bin6", "main warehouse"}},
				{Name: "unitCost", Type: TypeNumber, Required: false, Description: "Cost per unit"},
				{Name: "preferredSupplierName", Type: TypeString, Required: false, Description: "Supplier the stock came from"},
			},
			Examples: []string{"Add 5 M10 nuts to rack 1 bin6", "We received 20 bearings into the main warehouse"},
		},
		&ActionDefinition{
			Name:        "USE_STOCK",
			Category:    CategoryStock,
			Description: "Consume or remove quantity of an item from a stock location",
			Keywords:    []string{"use", "used", "take", "took", "remove", "consume"},
			Parameters: []ParameterDefinition{
				{Name: "partNumber", Type: TypeString, Required: true, Description: "Item or part identifier"},
				{Name: "quantity", Type: TypeNumber, Required: true, Description: "Quantity to remove"},
				{Name: "location", Type: TypeString, Required: true, Description: "Stock location"},
				{Name: "jobNumber", Type: TypeString, Required: false, Description: "Job the stock was used on"},
			},
			Examples: []string{"Used 3 filters from van stock", "Take 2 M10 nuts from rack 1 bin6"},
		},
		&ActionDefinition{
			Name:        "MOVE_STOCK",
			Category:    CategoryStock,
			Description: "Move quantity of an item between two stock locations",
			Keywords:    []string{"move", "moved", "transfer", "relocate", "shift"},
			Parameters: []ParameterDefinition{
				{Name: "partNumber", Type: TypeString, Required: true, Description: "Item or part identifier"},
				{Name: "quantity", Type: TypeNumber, Required: true, Description: "Quantity to move"},
				{Name: "fromLocation", Type: TypeString, Required: true, Description: "Source location"},
				{Name: "toLocation", Type: TypeString, Required: true, Description: "Destination location"},
			},
			Examples: []string{"Move 10 bearings from main warehouse to van 2"},
		},
		&ActionDefinition{
			Name:        "COUNT_STOCK",
			Category:    CategoryStock,
			Description: "Record a counted quantity of an item at a location",
			Keywords:    []string{"count", "counted", "have", "stocktake"},
			Parameters: []ParameterDefinition{
				{Name: "partNumber", Type: TypeString, Required: true, Description: "Item or part identifier"},
				{Name: "quantity", Type: TypeNumber, Required: true, Description: "Counted quantity"},
				{Name: "location", Type: TypeString, Required: false, Description: "Stock location counted"},
			},
			Examples: []string{"We have 14 contactors in the store", "Counted 6 filters in van 1"},
		},
		&ActionDefinition{
			Name:        "QUERY_INVENTORY",
			Category:    CategorySearch,
			Description: "Ask how much of an item is held and where",
			Keywords:    []string{"how many", "how much", "where is", "stock level", "left"},
			Parameters: []ParameterDefinition{
				{Name: "search", Type: TypeString, Required: true, Description: "Item to look up"},
				{Name: "location", Type: TypeString, Required: false, Description: "Restrict to one location"},
			},
			Examples: []string{"How many M10 nuts do we have?", "Where are the 6204 bearings?"},
		},
		&ActionDefinition{
			Name:        "SEARCH_STOCK",
			Category:    CategorySearch,
			Description: "Search held stock records by free text",
			Keywords:    []string{"search", "find", "in stock", "stock"},
			Parameters: []ParameterDefinition{
				{Name: "search", Type: TypeString, Required: true, Description: "Search term"},
				{Name: "location", Type: TypeString, Required: false, Description: "Restrict to one location"},
			},
			Examples: []string{"Search stock for bolts", "What bearings are in stock?"},
		},
		&ActionDefinition{
			Name:        "SEARCH_CATALOGUE",
			Category:    CategorySearch,
			Description: "Search the parts catalogue by free text",
			Keywords:    []string{"search", "find", "catalogue", "catalog", "part"},
			Parameters: []ParameterDefinition{
				{Name: "search", Type: TypeString, Required: true, Description: "Search term"},
				{Name: "manufacturer", Type: TypeString, Required: false, Description: "Restrict to one manufacturer"},
			},
			Examples: []string{"Find Siemens burner controllers in the catalogue"},
		},
		&ActionDefinition{
			Name:        "CREATE_CATALOGUE_ITEM",
			Category:    CategoryCatalogue,
			Description: "Create a new catalogue item without stock",
			Keywords:    []string{"create", "new", "part", "item", "catalogue"},
			Parameters: []ParameterDefinition{
				{Name: "partNumber", Type: TypeString, Required: true, Description: "New part identifier"},
				{Name: "description", Type: TypeString, Required: false, Description: "Item description"},
				{Name: "manufacturer", Type: TypeString, Required: false, Description: "Manufacturer name"},
				{Name: "unitCost", Type: TypeNumber, Required: false, Description: "Cost per unit"},
				{Name: "markupPercent", Type: TypeNumber, Required: false, Description: "Markup percentage for sell price"},
				{Name: "minimumQuantity", Type: TypeNumber, Required: false, Description: "Reorder threshold"},
				{Name: "preferredSupplierName", Type: TypeString, Required: false, Description: "Preferred supplier"},
			},
			Examples: []string{"Create a new part LMV37.100"},
		},
		&ActionDefinition{
			Name:        "CREATE_CATALOGUE_ITEM_AND_ADD_STOCK",
			Category:    CategoryCatalogue,
			Description: "Create a new catalogue item and book initial stock in one step",
			Keywords:    []string{"create", "new", "add", "stock", "part"},
			Parameters: []ParameterDefinition{
				{Name: "partNumber", Type: TypeString, Required: true, Description: "New part identifier"},
				{Name: "quantity", Type: TypeNumber, Required: true, Description: "Initial quantity"},
				{Name: "description", Type: TypeString, Required: false, Description: "Item description"},
				{Name: "manufacturer", Type: TypeString, Required: false, Description: "Manufacturer name"},
				{Name: "unitCost", Type: TypeNumber, Required: false, Description: "Cost per unit"},
				{Name: "markupPercent", Type: TypeNumber, Required: false, Description: "Markup percentage for sell price"},
				{Name: "minimumQuantity", Type: TypeNumber, Required: false, Description: "Reorder threshold"},
				{Name: "location", Type: TypeString, Required: false, Description: "Initial stock location"},
			},
			Examples: []string{"New part BRG-6205, add 10 to the main warehouse"},
		},
		&ActionDefinition{
			Name:        "ASSIGN_TO_JOB",
			Category:    CategoryJobs,
			Description: "Allocate stock of an item to a job",
			Keywords:    []string{"assign", "allocate", "book", "job"},
			Parameters: []ParameterDefinition{
				{Name: "partNumber", Type: TypeString, Required: true, Description: "Item or part identifier"},
				{Name: "quantity", Type: TypeNumber, Required: true, Description: "Quantity to allocate"},
				{Name: "jobNumber", Type: TypeString, Required: true, Description: "Target job"},
			},
			Examples: []string{"Book 4 contactors to job 1042"},
		},
		&ActionDefinition{
			Name:        "CREATE_JOB",
			Category:    CategoryJobs,
			Description: "Create a new job record",
			Keywords:    []string{"create", "new", "job"},
			Parameters: []ParameterDefinition{
				{Name: "jobNumber", Type: TypeString, Required: false, Description: "Job number, generated when absent"},
				{Name: "customerName", Type: TypeString, Required: true, Description: "Customer the job is for"},
				{Name: "description", Type: TypeString, Required: false, Description: "Job description"},
			},
			Examples: []string{"New job for Acme Dairy, boiler service"},
		},
		&ActionDefinition{
			Name:        "CREATE_CUSTOMER",
			Category:    CategoryCustomers,
			Description: "Create a new customer record",
			Keywords:    []string{"create", "new", "customer"},
			Parameters: []ParameterDefinition{
				{Name: "customerName", Type: TypeString, Required: true, Description: "Customer name"},
				{Name: "contact", Type: TypeString, Required: false, Description: "Contact details"},
			},
			Examples: []string{"Add a customer called Acme Dairy"},
		},
		&ActionDefinition{
			Name:        "LOW_STOCK_REPORT",
			Category:    CategoryReporting,
			Description: "List items at or below their reorder threshold",
			Keywords:    []string{"low", "reorder", "report", "running out"},
			Parameters: []ParameterDefinition{
				{Name: "location", Type: TypeString, Required: false, Description: "Restrict to one location"},
			},
			Examples: []string{"What are we running low on?"},
		},
		&ActionDefinition{
			Name:        "STOCK_VALUE_REPORT",
			Category:    CategoryReporting,
			Description: "Report the value of held stock",
			Keywords:    []string{"value", "worth", "report"},
			Parameters: []ParameterDefinition{
				{Name: "location", Type: TypeString, Required: false, Description: "Restrict to one location"},
			},
			Examples: []string{"What is the van 2 stock worth?"},
		},
	)

	// Every alias must resolve to a registered action.
	for alias, target := range aliases {
		if _, ok := actions[target]; !ok {
			panic(fmt.Sprintf("registry: alias %s targets unknown action %s", alias, target))
		}
	}
}

// Find returns the definition for a canonical action name.
func Find(name string) (*ActionDefinition, bool) {
	def, ok := actions[strings.ToUpper(strings.TrimSpace(name))]
	return def, ok
}

// ByCategory returns all actions in a category, sorted by name.
func ByCategory(category string) []*ActionDefinition {
	var defs []*ActionDefinition
	for _, def := range actions {
		if def.Category == category {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// All returns every registered action, sorted by name.
func All() []*ActionDefinition {
	defs := make([]*ActionDefinition, 0, len(actions))
	for _, def := range actions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// NormalizeActionName maps a raw action name to its canonical form: case
// folding first, then the alias table. Unknown names come back upper-cased
// unchanged so downstream lookups fail loudly rather than silently guessing.
func NormalizeActionName(raw string) string {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}
