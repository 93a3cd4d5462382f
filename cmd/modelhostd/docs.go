package main

// General API documentation for swaggo. Run `swag init -g cmd/modelhostd/docs.go` to generate docs.
//
// @title           modelhost API
// @version         1.0
// @description     HTTP API for on-device model lifecycle management: catalog, adapter registry, load coordination and memory pressure.
//
// @contact.name   modelhost maintainers
// @contact.url    https://github.com/your-org/modelhost
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
