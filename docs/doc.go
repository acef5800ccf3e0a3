// Package docs holds the generated OpenAPI documentation.
//
// Roadmap API
//
//	@title			Roadmap API
//	@version		1.0
//	@description	Asynchronous generation of timeline charts, summaries and slide decks from research documents.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/roadmap
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/roadmap/serve.go -o ./swagger --parseDependency --parseInternal
