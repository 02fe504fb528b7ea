// Package docs DeskTown API documentation.
// Regenerate with: swag init -g server/main.go -o docs
package docs

import "github.com/swaggo/swag"

// @title DeskTown API
// @version 1.0
// @description Virtual office platform: tasks, tickets, feed, chat, meetings, calls, storefronts, orders, email and notifications

// @host localhost:5000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Employee portal token. Type "Bearer" followed by a space and the JWT token.

// @tag.name auth
// @tag.description Cookie sessions, registration and login
// @tag.name employee
// @tag.description Employee portal with revocable bearer tokens
// @tag.name users
// @tag.description Directory, profile and presence
// @tag.name tasks
// @tag.description Task board and automation
// @tag.name tickets
// @tag.description Support tickets
// @tag.name posts
// @tag.description Company feed
// @tag.name chat
// @tag.description Direct and group threads
// @tag.name meetings
// @tag.description Scheduling and RSVPs
// @tag.name calls
// @tag.description Video and audio call signaling
// @tag.name offices
// @tag.description Virtual office storefronts
// @tag.name services
// @tag.description Services sold by offices
// @tag.name orders
// @tag.description Orders, checkout and transactions
// @tag.name webhooks
// @tag.description Signed inbound callbacks
// @tag.name statuses
// @tag.description Expiring status stories
// @tag.name emails
// @tag.description Internal mailboxes
// @tag.name notifications
// @tag.description In-app notifications
// @tag.name push
// @tag.description Web push subscriptions
// @tag.name uploads
// @tag.description Object storage
// @tag.name search
// @tag.description Full-text search
// @tag.name admin
// @tag.description Platform administration

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {},
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5000",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "DeskTown API",
	Description:      "Virtual office platform API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
