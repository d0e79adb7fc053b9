package actor

import "runtime"

func goVersion() string { return runtime.Version() }
