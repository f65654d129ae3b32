package main

import "errors"

var errUnavailableTools = errors.New("required tool binaries are unavailable")
var errValidationFailed = errors.New("pipeline failed validation")
