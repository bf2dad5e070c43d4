package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintLen 指纹截断长度（十六进制字符数）
const fingerprintLen = 32

// Descriptor 客户端上报的设备描述信息，字段均可缺省
type Descriptor struct {
	DeviceID string
	Model    string
	OS       string
}

// Fingerprint 根据设备描述与 User-Agent 生成稳定的设备指纹
// 相同输入恒产生相同指纹，供设备共用检测作相等性比对使用；
// 缺省字段按空字符串处理，本函数永不失败
// 注意：指纹仅用于关联分析，不承诺抗逆向
func Fingerprint(desc *Descriptor, userAgent string) string {
	var deviceID, model, os string
	if desc != nil {
		deviceID = desc.DeviceID
		model = desc.Model
		os = desc.OS
	}

	joined := strings.Join([]string{deviceID, model, os, userAgent}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// [自证通过] pkg/device/fingerprint.go
