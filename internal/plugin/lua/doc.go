// Package lua runs plugin entries written in Lua on gopher-lua.
//
// An entry chunk returns its default export, either directly or as the
// "default" field of a table:
//
//	return function(wdir)
//	    wdir.logger.info("starting in " .. wdir.path)
//
//	    wdir.watch.on("change", function(path)
//	        wdir.logger.debug("changed", "path", path)
//	    end)
//
//	    wdir.registerCommand({
//	        name = "tag",
//	        description = "Tag the watched tree",
//	        aliases = { "t" },
//	        options = {
//	            { flag = "-l, --label <name>", parser = "collect" },
//	            { flag = "-v, --verbose", parser = function(_, prev) return not prev end },
//	        },
//	        action = function(path, opts)
//	            print(path, #opts.label)
//	        end,
//	    })
//	end
//
// The bundle table carries logger, watch, config, overwriteConfig, version,
// path, getPath, registerCommand and plugin. Functions accept both the
// dot and colon calling styles.
//
// Each plugin owns one State. Access is serialized by the state's mutex,
// and load-time calls run under the loader's context so a runaway entry is
// interrupted when its timeout expires.
package lua
