// Package manifest translates compose services into cluster manifests.
//
// This package is part of the functional core: every function is pure and
// works on values. Skeleton documents are held by Templates and are never
// mutated; each translation starts from a deep copy.
//
// # Functions
//
//   - Naming: derive resource names from a prefix (NamingContext)
//   - Templates: decode and hold the deployment and service skeletons
//   - Ports/Env: parse "published:target" and "KEY=VALUE" tokens
//   - Translate: build the deployment document and, when ports are
//     published, the service document for one compose service
//   - Marshal: serialize a document to YAML with stable key order
//
// # Usage
//
//	templates, _ := manifest.DefaultTemplates()
//	naming := manifest.NamingContext{Prefix: "Demo"}
//	result, err := manifest.Translate(svc, naming, templates)
//	data, err := manifest.Marshal(result.Deployment)
package manifest
