package image

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("stvm.image")
