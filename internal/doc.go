// Package internal contains the core implementation packages for mimicry.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - registry: Component registry (JSON document or SQLite) and change events
//   - resolver: Id and name lookup with bounded retry for freshly written components
//   - transform: TSX to browser JSX source rewriting and tree-sitter diagnostics
//   - preview: Self-contained preview document synthesis
//   - overlay: Element selection overlay script and edit context rendering
//   - server: HTTP server, studio and gallery pages, WebSocket push
//   - gallery: Aggregated listing of components and saved screenshots
//   - watcher: Components directory monitoring with debouncing
//   - mcptools: Registry tools served over the Model Context Protocol
//   - config, logging, errors, validation, version: shared infrastructure
//
// # Data Flow
//
// A generator writes a component through the registry API or the MCP tools.
// The registry persists the source and emits an event, the server pushes a
// registry_update to studio pages, and the studio reloads its preview frame.
// Each /preview/{id} request resolves the entry, transforms the source and
// synthesizes a fresh document; nothing is cached between requests.
//
// # Security Considerations
//
//   - Config validates paths and hosts before use
//   - Validation rejects traversal in component ids, filenames and image names
//   - Server checks WebSocket and CORS origins against an allowlist
//   - Preview titles and gallery text are sanitized with bluemonday
package internal
