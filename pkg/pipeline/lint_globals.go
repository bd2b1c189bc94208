package pipeline

var builtinGlobals = []string{
	"Array", "Boolean", "Date", "Error", "EvalError", "Function", "Infinity", "JSON", "Math",
	"NaN", "Number", "Object", "RangeError", "ReferenceError", "RegExp", "String", "SyntaxError",
	"TypeError", "URIError", "arguments", "decodeURI", "decodeURIComponent", "encodeURI",
	"encodeURIComponent", "escape", "eval", "isFinite", "isNaN", "parseFloat", "parseInt",
	"undefined", "unescape",
}

var envGlobals = map[string][]string{
	"browser": {
		"Blob", "CustomEvent", "DOMParser", "Element", "Event", "File", "FileReader", "FormData",
		"HTMLElement", "Image", "IntersectionObserver", "MutationObserver", "Node", "NodeList",
		"Notification", "URL", "URLSearchParams", "WebSocket", "Worker", "XMLHttpRequest",
		"addEventListener", "alert", "atob", "btoa", "cancelAnimationFrame", "clearInterval",
		"clearTimeout", "confirm", "console", "crypto", "document", "fetch", "frames",
		"getComputedStyle", "history", "innerHeight", "innerWidth", "localStorage", "location",
		"matchMedia", "navigator", "pageXOffset", "pageYOffset", "parent", "performance", "prompt",
		"removeEventListener", "requestAnimationFrame", "screen", "scrollX", "scrollY", "self",
		"sessionStorage", "setInterval", "setTimeout", "top", "window",
	},
	"jquery": {"$", "jQuery"},
	"es6": {
		"ArrayBuffer", "DataView", "Float32Array", "Float64Array", "Int16Array", "Int32Array",
		"Int8Array", "Map", "Promise", "Proxy", "Reflect", "Set", "Symbol", "Uint16Array",
		"Uint32Array", "Uint8Array", "Uint8ClampedArray", "WeakMap", "WeakSet",
	},
}
