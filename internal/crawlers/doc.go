// Package crawlers 提供文档站点的页面发现、变更检测和原始镜像功能
//
// # 概述
//
// crawlers包从种子URL出发遍历前缀作用域内的链接图,对每个页面计算内容摘要,
// 与上次运行的指纹表比对,只把新增或变更的页面写入镜像目录。
//
// # 核心组件
//
// ## PageFetcher
//
// 基于Colly的同步抓取器,每次Fetch在调用方goroutine中完成。
// 通过OnHTML("a[href]")收集出链,OnResponse负责gzip/deflate/br解压。
//
//	fetcher := NewPageFetcher(FetcherConfig{RequestTimeout: 10 * time.Second}, headerProvider, NewLimiter(delay))
//	record, links, err := fetcher.FetchPage(ctx, "https://docs.example/en/")
//
// ## Frontier (工作列表)
//
// 待访问队列 + 已访问集合 + 进行中计数,由同一把锁保护。
// 一个URL只会被取出一次; 队列为空且没有进行中的URL时遍历结束。
//
// ## LinkCrawler
//
// 多个worker共享一个Frontier,抓取失败的页面记录日志后继续遍历。
//
//	scope, _ := PrefixScope("https://docs.example/en/")
//	crawler := NewLinkCrawler(fetcher, scope, workers, recorder)
//	result, err := crawler.Discover(ctx, seed)
//
// ## ChangeDetector
//
// 按URL排序逐个抓取比对,新增/变更页面写入Mirror并追加到ChangeLog。
//
//	detector := NewChangeDetector(fetcher, NewMirror(sourceDir), changeLog, true, recorder)
//	changes, err := detector.Diff(ctx, result.URLs, previous)
//
// # 镜像路径
//
// 本地路径与URL路径段一致; 以斜杠结尾的路径映射到index.html,无扩展名的路径追加.html:
//
//	https://docs.example/en/api/       -> en/api/index.html
//	https://docs.example/en/api/intro  -> en/api/intro.html
package crawlers
