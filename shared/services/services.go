// Package services is the catalog of VeriGrade backend services: where they
// listen, which database they own and which API prefixes they serve.
package services

import "strings"

type Service struct {
	Name     string
	Port     string
	URLEnv   string
	Database string
	// Prefixes are gateway path prefixes; "*" matches one path segment.
	Prefixes []string
}

func (s Service) DefaultURL() string {
	return "http://localhost:" + s.Port
}

var All = []Service{
	{Name: "api-gateway", Port: "8080"},
	{Name: "auth-service", Port: "8081", URLEnv: "AUTH_SERVICE_URL", Database: "verigrade_core",
		Prefixes: []string{"/v1/auth"}},
	{Name: "organization-service", Port: "8082", URLEnv: "ORGANIZATION_SERVICE_URL", Database: "verigrade_core",
		Prefixes: []string{"/v1/users", "/v1/organizations"}},
	{Name: "account-service", Port: "8083", URLEnv: "ACCOUNT_SERVICE_URL", Database: "verigrade_accounts",
		Prefixes: []string{"/v1/accounts"}},
	{Name: "transaction-service", Port: "8084", URLEnv: "TRANSACTION_SERVICE_URL", Database: "verigrade_transactions",
		Prefixes: []string{"/v1/accounts/*/transactions"}},
	{Name: "invoice-service", Port: "8085", URLEnv: "INVOICE_SERVICE_URL", Database: "verigrade_invoices",
		Prefixes: []string{"/v1/invoices"}},
	{Name: "analytics-service", Port: "8086", URLEnv: "ANALYTICS_SERVICE_URL", Database: "verigrade_analytics",
		Prefixes: []string{"/v1/customers", "/v1/subscriptions", "/v1/metrics", "/v1/scenarios"}},
	{Name: "tax-service", Port: "8087", URLEnv: "TAX_SERVICE_URL", Database: "verigrade_tax",
		Prefixes: []string{"/v1/tax", "/v1/employees", "/v1/payroll"}},
	{Name: "inventory-service", Port: "8088", URLEnv: "INVENTORY_SERVICE_URL", Database: "verigrade_inventory",
		Prefixes: []string{"/v1/inventory"}},
	{Name: "project-service", Port: "8089", URLEnv: "PROJECT_SERVICE_URL", Database: "verigrade_project",
		Prefixes: []string{"/v1/projects", "/v1/resources", "/v1/allocations"}},
	{Name: "sync-service", Port: "8090", URLEnv: "SYNC_SERVICE_URL", Database: "verigrade_sync",
		Prefixes: []string{"/v1/sync"}},
	{Name: "document-service", Port: "8091", URLEnv: "DOCUMENT_SERVICE_URL", Database: "verigrade_documents",
		Prefixes: []string{"/v1/documents"}},
}

// Lookup accepts the full name ("invoice-service") or the short one ("invoice").
func Lookup(name string) (Service, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range All {
		if s.Name == name || strings.TrimSuffix(s.Name, "-service") == name {
			return s, true
		}
	}
	return Service{}, false
}

// Upstreams are the services the gateway proxies to.
func Upstreams() []Service {
	var out []Service
	for _, s := range All {
		if len(s.Prefixes) > 0 {
			out = append(out, s)
		}
	}
	return out
}
