package manifest

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("stvm.manifest")
