package crawlers

import (
	"context"
	"sort"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// ContentSource 抓取页面内容
type ContentSource interface {
	Fetch(ctx context.Context, pageURL string) (*models.PageRecord, error)
}

// ChangeDetector 变更检测器
// 将本次抓取的摘要与上次运行的指纹表比对,保存新增/变更页面
type ChangeDetector struct {
	source    ContentSource
	mirror    *Mirror
	changeLog *ChangeLog

	// carryForward 抓取失败时沿用上次的摘要,否则从指纹表中丢弃
	carryForward bool

	// OnCheck 每比对完一个URL回调一次(可为nil)
	OnCheck func(pageURL string, status models.PageStatus)

	recorder DetectRecorder
}

// DetectRecorder 记录比对结果的指标接口
type DetectRecorder interface {
	PageRecorder
	PageClassified(status models.PageStatus)
}

// NewChangeDetector 创建变更检测器
// changeLog可以为nil
func NewChangeDetector(source ContentSource, mirror *Mirror, changeLog *ChangeLog, carryForward bool, recorder DetectRecorder) *ChangeDetector {
	return &ChangeDetector{
		source:       source,
		mirror:       mirror,
		changeLog:    changeLog,
		carryForward: carryForward,
		recorder:     recorder,
	}
}

// Diff 比对发现的URL与上次指纹表
// 处理流程(按URL排序,结果可复现):
//  1. 抓取内容,失败则跳过(不算变更)
//  2. 计算摘要,与previous比较
//  3. 新增/变更页面写入镜像目录并记入变更清单
//  4. 构建本次完整指纹表
func (d *ChangeDetector) Diff(ctx context.Context, urls []string, previous models.FingerprintMap) (*models.ChangeSet, error) {
	startTime := time.Now()

	ordered := append([]string(nil), urls...)
	sort.Strings(ordered)

	cs := &models.ChangeSet{
		Current: make(models.FingerprintMap, len(ordered)),
	}

	utils.Infof("🔎 检查 %d 个页面的更新...", len(ordered))

	for _, pageURL := range ordered {
		if err := ctx.Err(); err != nil {
			return cs, err
		}

		status := d.check(ctx, pageURL, previous, cs)
		if d.recorder != nil {
			d.recorder.PageClassified(status)
		}
		if d.OnCheck != nil {
			d.OnCheck(pageURL, status)
		}
	}

	utils.Infof("✅ 检查完成: 新增 %d, 变更 %d, 未变 %d, 失败 %d (%.2f秒)",
		cs.CountByStatus(models.PageNew), cs.CountByStatus(models.PageChanged),
		cs.Unchanged, len(cs.Failed), time.Since(startTime).Seconds())

	return cs, nil
}

// check 处理单个URL
func (d *ChangeDetector) check(ctx context.Context, pageURL string, previous models.FingerprintMap, cs *models.ChangeSet) models.PageStatus {
	record, err := d.source.Fetch(ctx, pageURL)
	if d.recorder != nil {
		d.recorder.PageFetched("detect", err == nil)
	}
	if err != nil {
		if ctx.Err() == nil {
			utils.Warnf("抓取页面失败,本次跳过 [%s]: %v", pageURL, err)
		}
		d.fail(pageURL, previous, cs)
		return models.PageFailed
	}

	oldDigest, existed := previous[pageURL]
	if existed && oldDigest == record.Digest {
		cs.Current[pageURL] = record.Digest
		cs.Unchanged++
		return models.PageUnchanged
	}

	status := models.PageChanged
	if !existed {
		status = models.PageNew
	}

	localPath, err := d.mirror.Save(pageURL, record.Content)
	if err != nil {
		// 未保存的页面不能记录新摘要,否则下次会被误判为未变更
		utils.Errorf("保存页面失败 [%s]: %v", pageURL, err)
		d.fail(pageURL, previous, cs)
		return models.PageFailed
	}

	cs.Current[pageURL] = record.Digest
	cs.Changed = append(cs.Changed, models.PageChange{
		URL:       pageURL,
		Status:    status,
		Digest:    record.Digest,
		LocalPath: localPath,
		Size:      int64(len(record.Content)),
	})
	if err := d.changeLog.Append(pageURL); err != nil {
		utils.Warnf("写入变更清单失败 [%s]: %v", pageURL, err)
	}

	utils.Debugf("%s: %s -> %s", status, pageURL, localPath)
	return status
}

// fail 记录失败的URL,按配置决定是否沿用旧摘要
func (d *ChangeDetector) fail(pageURL string, previous models.FingerprintMap, cs *models.ChangeSet) {
	cs.Failed = append(cs.Failed, pageURL)
	if !d.carryForward {
		return
	}
	if digest, ok := previous[pageURL]; ok {
		cs.Current[pageURL] = digest
	}
}
