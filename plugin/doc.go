// Package plugin discovers extension units and lets them populate a
// registry.Registry before the service accepts traffic.
//
// Two kinds of units exist:
//
//   - compiled plugins implementing Plugin, passed to Loader.LoadStatic
//   - Lua scripts (*.lua) in a plugin directory, passed to Loader.LoadDir
//
// A script registers agents through the useragents module:
//
//	local ua = require("useragents")
//
//	ua.register("echo", function(req)
//	  return function(query, req) return query end
//	end)
//
//	ua.register("web_search_tool", function(req)
//	  return { model = "openai", tools = { "fetch_date", "fetch_url" } }
//	end)
//
// A constructor receives the request as a table (agent_name, instructions,
// query) and returns either a handler function or a table describing a
// model-backed agent. Handlers may return nil plus an error message.
//
// Units load in isolation: a unit that fails is reported and skipped, and
// none of its registrations reach the registry.
package plugin
