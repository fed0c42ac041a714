package conversation

import "fmt"

// SessionKey 会话身份元组 (source, project_id, session_id)
// 外部协作方（收藏存储等）将其作为不透明外键使用
type SessionKey struct {
	Source    Source `json:"source"`
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`
}

// String 返回稳定的字符串形式，可直接用作缓存键或外部存储键
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Source, k.ProjectID, k.SessionID)
}

// Compare 按 (source, project_id, session_id) 字典序比较，用于确定性排序
func (k SessionKey) Compare(other SessionKey) int {
	if k.Source != other.Source {
		if k.Source < other.Source {
			return -1
		}
		return 1
	}
	if k.ProjectID != other.ProjectID {
		if k.ProjectID < other.ProjectID {
			return -1
		}
		return 1
	}
	if k.SessionID != other.SessionID {
		if k.SessionID < other.SessionID {
			return -1
		}
		return 1
	}
	return 0
}

// MessageKey 消息身份元组，在会话元组上附加 line_index
type MessageKey struct {
	SessionKey
	LineIndex int `json:"line_index"`
}

// String 返回稳定的字符串形式
func (k MessageKey) String() string {
	return fmt.Sprintf("%s#%d", k.SessionKey.String(), k.LineIndex)
}
