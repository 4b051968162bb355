package ui

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/dicer/pkg/model"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t model.Timestamp) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"formatDate": func(t model.Timestamp) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("Jan 2, 2006")
	},
	"since": func(t model.Timestamp) string {
		if t.IsZero() {
			return ""
		}
		return humanize.RelTime(t.Time, time.Now(), "ago", "from now")
	},
	"comma": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"plural": func(n int, singular, plural string) string {
		if n == 1 {
			return singular
		}
		return plural
	},
	"statusBadge": func(s model.UserStatus) string {
		if s == model.UserStatusActive {
			return "bg-green-100 text-green-800"
		}
		return "bg-gray-100 text-gray-700"
	},
	"navClass": func(current, target string) string {
		if current == target || strings.HasPrefix(current, target+"/") {
			return "border-indigo-500 text-gray-900"
		}
		return "border-transparent text-gray-500 hover:border-gray-300 hover:text-gray-700"
	},
	"join": strings.Join,
	"add": func(a, b int) int {
		return a + b
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// renderTemplate renders a page inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			if _, err := tmpl.New(filepath.Base(compName)).Parse(compContent); err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

// templates holds all template content. Pages define "content"; shared
// fragments live under components/.
var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://unpkg.com/htmx.org@1.9.10"></script>
    <script src="https://cdn.tailwindcss.com"></script>
    <style>
        .htmx-indicator { display: none; }
        .htmx-request .htmx-indicator { display: inline-block; }
        .htmx-request.htmx-indicator { display: inline-block; }
    </style>
</head>
<body class="bg-gray-50 min-h-screen">
    {{if .Session}}
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-7xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex justify-between h-16">
                <div class="flex">
                    <a href="/dashboard" class="flex items-center px-2 py-2 text-xl font-bold tracking-tight text-gray-900">DICER</a>
                    <div class="hidden sm:ml-6 sm:flex sm:space-x-8">
                        <a href="/dashboard" class="{{navClass .Path "/dashboard"}} inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">Dashboard</a>
                        <a href="/users" class="{{navClass .Path "/users"}} inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">Users</a>
                        <a href="/devices" class="{{navClass .Path "/devices"}} inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">Devices</a>
                        <a href="/ble-usage" class="{{navClass .Path "/ble-usage"}} inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">BLE Usage</a>
                        <a href="/login-history" class="{{navClass .Path "/login-history"}} inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">Login History</a>
                    </div>
                </div>
                <div class="flex items-center">
                    <span class="text-sm text-gray-500 mr-4">{{.Session.Email}}</span>
                    <form action="/logout" method="POST">
                        <button type="submit" class="text-sm text-gray-500 hover:text-gray-700">Logout</button>
                    </form>
                </div>
            </div>
        </div>
    </nav>
    {{end}}

    <main class="max-w-7xl mx-auto py-6 sm:px-6 lg:px-8">
        {{template "flash" .}}
        {{template "content" .}}
    </main>
</body>
</html>`,

	"components/flash": `{{define "flash"}}
{{if .OK}}
<div class="mb-4 rounded-md bg-green-50 p-4" role="status"><div class="text-sm text-green-700">{{.OK}}</div></div>
{{end}}
{{if .Error}}
<div class="mb-4 rounded-md bg-red-50 p-4" role="alert"><div class="text-sm text-red-700">{{.Error}}</div></div>
{{end}}
{{end}}`,

	"components/pagination": `{{define "pagination"}}
{{with .Pagination}}
<div class="flex items-center justify-between px-4 py-3 text-sm text-gray-600">
    <span>{{comma .Total}} {{plural .Total "record" "records"}}</span>
    <div class="space-x-4">
        {{if .HasPrev}}<a class="text-indigo-600" href="?offset={{.PrevOffset}}&limit={{.Limit}}&q={{.Query}}">Previous</a>{{end}}
        {{if .HasMore}}<a class="text-indigo-600" href="?offset={{.NextOffset}}&limit={{.Limit}}&q={{.Query}}">Next</a>{{end}}
    </div>
</div>
{{end}}
{{end}}`,

	"components/search": `{{define "search"}}
<form method="GET" class="mb-4">
    <input type="search" name="q" value="{{.Pagination.Query}}" placeholder="Search"
           class="w-full sm:w-80 px-3 py-2 border border-gray-300 rounded-md text-sm">
</form>
{{end}}`,

	"login": `{{define "content"}}
<div class="min-h-screen flex items-center justify-center py-12 px-4 sm:px-6 lg:px-8">
    <div class="max-w-md w-full space-y-8">
        <div>
            <h1 class="text-4xl font-bold tracking-tight text-gray-900">DICER</h1>
            <p class="mt-2 text-sm text-gray-600">Admin Panel</p>
        </div>
        {{if .Unavailable}}
        <div class="rounded-md bg-yellow-50 p-4" role="alert" data-testid="service-unavailable">
            <div class="text-sm text-yellow-800">The service is currently inactive. Login is disabled.</div>
        </div>
        {{end}}
        <form class="mt-8 space-y-6" action="/login" method="POST"
              hx-post="/login" hx-disabled-elt="find button, find input" hx-indicator="#login-busy">
            <div class="space-y-4">
                <div>
                    <label for="email" class="block text-sm font-medium text-gray-700">Email</label>
                    <input id="email" name="email" type="email" value="{{.Email}}" autocomplete="username"
                           class="mt-1 block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm"
                           placeholder="admin@example.com">
                </div>
                <div>
                    <label for="password" class="block text-sm font-medium text-gray-700">Password</label>
                    <input id="password" name="password" type="password" autocomplete="current-password"
                           class="mt-1 block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
                </div>
            </div>
            <div>
                <button type="submit" {{if .Unavailable}}disabled{{end}}
                        class="w-full flex justify-center py-2 px-4 rounded-md text-sm font-medium text-white bg-gray-900 hover:bg-gray-800 disabled:opacity-50 disabled:cursor-not-allowed">
                    <span id="login-busy" class="htmx-indicator mr-2">&#8987;</span>
                    Sign in
                </button>
            </div>
        </form>
    </div>
</div>
{{end}}`,

	"dashboard": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8">
        <p class="text-xs uppercase tracking-widest text-gray-500">Overview</p>
        <h1 class="text-2xl font-semibold text-gray-900">Dashboard</h1>
        <p class="mt-1 text-sm text-gray-500">Welcome back, {{.Session.Email}}</p>
    </div>
    <div class="grid grid-cols-1 gap-5 sm:grid-cols-2 lg:grid-cols-3">
        <a href="/users" class="bg-white overflow-hidden shadow rounded-lg p-5 block hover:bg-gray-50">
            <dt class="text-sm font-medium text-gray-500">Total Users</dt>
            <dd class="mt-1 text-3xl font-semibold text-gray-900" data-testid="user-count">{{comma .UserCount}}</dd>
        </a>
        <a href="/devices" class="bg-white overflow-hidden shadow rounded-lg p-5 block hover:bg-gray-50">
            <dt class="text-sm font-medium text-gray-500">Devices</dt>
            <dd class="mt-1 text-sm text-indigo-600">View registered devices</dd>
        </a>
        <a href="/login-history" class="bg-white overflow-hidden shadow rounded-lg p-5 block hover:bg-gray-50">
            <dt class="text-sm font-medium text-gray-500">Login History</dt>
            <dd class="mt-1 text-sm text-indigo-600">Review device logins</dd>
        </a>
    </div>
    <p class="mt-8 text-xs text-gray-400">Console up {{.Uptime}}</p>
</div>
{{end}}`,

	"users/list": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-6 flex items-end justify-between">
        <div>
            <p class="text-xs uppercase tracking-widest text-gray-500">Management</p>
            <h1 class="text-2xl font-semibold text-gray-900">Users</h1>
            <p class="mt-1 text-sm text-gray-500">{{.ActiveCount}} of {{.TotalCount}} active</p>
        </div>
    </div>

    <form action="/users" method="POST" class="mb-6 flex flex-wrap gap-2 items-end bg-white shadow rounded-lg p-4">
        <div>
            <label for="name" class="block text-xs text-gray-500">Name</label>
            <input id="name" name="name" class="px-3 py-2 border border-gray-300 rounded-md text-sm">
        </div>
        <div>
            <label for="phone" class="block text-xs text-gray-500">Phone</label>
            <input id="phone" name="phone" class="px-3 py-2 border border-gray-300 rounded-md text-sm">
        </div>
        <button type="submit" class="py-2 px-4 rounded-md text-sm font-medium text-white bg-gray-900">Add user</button>
    </form>

    {{template "search" .}}

    {{if .Users}}
    <div class="bg-white shadow rounded-lg overflow-hidden">
        <table class="min-w-full divide-y divide-gray-200" data-testid="users-table">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">User ID</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Name</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Phone</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Devices</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Status</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Created</th>
                    <th class="px-4 py-3"></th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .Users}}
                <tr data-testid="user-row-{{.ID}}">
                    <td class="px-4 py-3 text-sm font-mono">{{.ID}}</td>
                    <td class="px-4 py-3 text-sm">{{.Name}}</td>
                    <td class="px-4 py-3 text-sm">{{.Phone}}</td>
                    <td class="px-4 py-3 text-sm">{{if .DeviceIDs}}{{join .DeviceIDs ", "}}{{else}}-{{end}}</td>
                    <td class="px-4 py-3 text-sm"><span class="px-2 py-1 rounded-full text-xs {{statusBadge .Status}}">{{.Status}}</span></td>
                    <td class="px-4 py-3 text-sm text-gray-500">{{formatDate .CreatedAt}}</td>
                    <td class="px-4 py-3 text-sm text-right whitespace-nowrap">
                        <form action="/users/{{.ID}}/status" method="POST" class="inline">
                            {{if .IsActive}}
                            <input type="hidden" name="status" value="Inactive">
                            <button type="submit" class="text-gray-600 hover:text-gray-900">Deactivate</button>
                            {{else}}
                            <input type="hidden" name="status" value="Active">
                            <input name="device_id" placeholder="Device ID" class="px-2 py-1 border border-gray-300 rounded text-xs w-28">
                            <button type="submit" class="text-green-700 hover:text-green-900">Activate</button>
                            {{end}}
                        </form>
                        <button class="ml-3 text-red-600 hover:text-red-800"
                                hx-delete="/users/{{.ID}}" hx-confirm="Delete user {{.Name}}?">Delete</button>
                    </td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{template "pagination" .}}
    </div>
    {{else}}
    <div class="bg-white shadow rounded-lg p-8 text-center text-gray-500" data-testid="empty-state">No users found</div>
    {{end}}
</div>
{{end}}`,

	"users/created": `{{define "content"}}
<div class="px-4 py-6 sm:px-0 max-w-lg">
    <h1 class="text-2xl font-semibold text-gray-900 mb-4">User created</h1>
    <dl class="bg-white shadow rounded-lg p-5 space-y-3 text-sm">
        <div><dt class="text-gray-500">User ID</dt><dd class="font-mono">{{.User.ID}}</dd></div>
        <div><dt class="text-gray-500">Name</dt><dd>{{.User.Name}}</dd></div>
        <div><dt class="text-gray-500">Phone</dt><dd>{{.User.Phone}}</dd></div>
        {{if .User.Password}}
        <div><dt class="text-gray-500">Password</dt><dd class="font-mono text-lg" data-testid="generated-password">{{.User.Password}}</dd></div>
        {{end}}
    </dl>
    <p class="mt-4 text-xs text-gray-500">The password is shown only once.</p>
    <a href="/users" class="mt-6 inline-block text-indigo-600 hover:text-indigo-500">Back to users</a>
</div>
{{end}}`,

	"devices": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <p class="text-xs uppercase tracking-widest text-gray-500">Tracking</p>
    <h1 class="text-2xl font-semibold text-gray-900 mb-6">Devices</h1>
    {{template "search" .}}
    {{if .Devices}}
    <div class="bg-white shadow rounded-lg overflow-hidden">
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Device ID</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">User</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Phone</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Last Login</th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .Devices}}
                <tr data-testid="device-row-{{.ID}}">
                    <td class="px-4 py-3 text-sm font-mono">{{.ID}}</td>
                    <td class="px-4 py-3 text-sm">{{if .UserName}}{{.UserName}}{{else}}-{{end}}</td>
                    <td class="px-4 py-3 text-sm">{{if .Phone}}{{.Phone}}{{else}}-{{end}}</td>
                    <td class="px-4 py-3 text-sm text-gray-500">{{formatTime .LastLoginAt}} <span class="text-xs">{{since .LastLoginAt}}</span></td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{template "pagination" .}}
    </div>
    {{else}}
    <div class="bg-white shadow rounded-lg p-8 text-center text-gray-500" data-testid="empty-state">No devices found</div>
    {{end}}
</div>
{{end}}`,

	"ble": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <p class="text-xs uppercase tracking-widest text-gray-500">Tracking</p>
    <h1 class="text-2xl font-semibold text-gray-900 mb-6">BLE Usage</h1>
    {{template "search" .}}
    {{if .Usage}}
    <div class="bg-white shadow rounded-lg overflow-hidden">
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">BLE ID</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">User</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Phone</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Last Seen</th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .Usage}}
                <tr data-testid="ble-row-{{.ID}}">
                    <td class="px-4 py-3 text-sm font-mono">{{.ID}}</td>
                    <td class="px-4 py-3 text-sm">{{if .UserName}}{{.UserName}}{{else}}Unassigned{{end}}</td>
                    <td class="px-4 py-3 text-sm">{{if .Phone}}{{.Phone}}{{else}}-{{end}}</td>
                    <td class="px-4 py-3 text-sm text-gray-500">{{if .LastLoginAt.IsZero}}Never{{else}}{{formatTime .LastLoginAt}} <span class="text-xs">{{since .LastLoginAt}}</span>{{end}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{template "pagination" .}}
    </div>
    {{else}}
    <div class="bg-white shadow rounded-lg p-8 text-center text-gray-500" data-testid="empty-state">No BLE usage recorded</div>
    {{end}}
</div>
{{end}}`,

	"history": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <p class="text-xs uppercase tracking-widest text-gray-500">Audit</p>
    <h1 class="text-2xl font-semibold text-gray-900">Login History</h1>
    <p class="mt-1 mb-6 text-sm text-gray-500">{{.FailedCount}} failed {{plural .FailedCount "attempt" "attempts"}}</p>
    {{template "search" .}}
    {{if .History}}
    <div class="bg-white shadow rounded-lg overflow-hidden">
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">When</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">User</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Device</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Location</th>
                    <th class="px-4 py-3 text-left text-xs font-medium text-gray-500 uppercase">Result</th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .History}}
                <tr>
                    <td class="px-4 py-3 text-sm text-gray-500">{{formatTime .LoggedInAt}} <span class="text-xs">{{since .LoggedInAt}}</span></td>
                    <td class="px-4 py-3 text-sm">{{.UserName}} <span class="text-xs text-gray-500">{{.Phone}}</span></td>
                    <td class="px-4 py-3 text-sm font-mono">{{.DeviceID}}</td>
                    <td class="px-4 py-3 text-sm" title="{{.LatLong}}">{{if .Location}}{{truncate .Location 40}}{{else}}-{{end}}</td>
                    <td class="px-4 py-3 text-sm">{{if .Success}}<span class="text-green-700">Success</span>{{else}}<span class="text-red-700">Failed</span>{{end}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{template "pagination" .}}
    </div>
    {{else}}
    <div class="bg-white shadow rounded-lg p-8 text-center text-gray-500" data-testid="empty-state">No login history</div>
    {{end}}
</div>
{{end}}`,

	"error": `{{define "content"}}
<div class="min-h-screen flex items-center justify-center">
    <div class="text-center">
        <h1 class="text-4xl font-bold text-gray-900 mb-4">Error</h1>
        <p class="text-gray-600 mb-8">{{.Message}}</p>
        <a href="/dashboard" class="text-indigo-600 hover:text-indigo-500">Return to Dashboard</a>
    </div>
</div>
{{end}}`,
}
